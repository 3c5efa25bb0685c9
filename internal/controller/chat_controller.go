package controller

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp"

	"ai-pdfchat/internal/dto"
	"ai-pdfchat/internal/mapper"
	"ai-pdfchat/internal/pkg/logger"
	"ai-pdfchat/internal/pkg/serverutils"
	"ai-pdfchat/internal/service"
	"ai-pdfchat/internal/view"
	internalWS "ai-pdfchat/internal/websocket"
	"ai-pdfchat/pkg/apperror"
	"ai-pdfchat/pkg/ingest"
	"ai-pdfchat/pkg/progress"
)

const uploadField = "pdf_docs"

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Index(ctx *fiber.Ctx) error
	ProcessForm(ctx *fiber.Ctx) error
	AskForm(ctx *fiber.Ctx) error
	ResetForm(ctx *fiber.Ctx) error
	Process(ctx *fiber.Ctx) error
	Ask(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService    service.IChatService
	mapper         *mapper.ChatMapper
	renderer       *view.Renderer
	progress       *progress.Bus
	maxUploadBytes int64
	logger         logger.ILogger
}

func NewChatController(
	chatService service.IChatService,
	renderer *view.Renderer,
	progressBus *progress.Bus,
	maxUploadBytes int64,
	log logger.ILogger,
) IChatController {
	return &chatController{
		chatService:    chatService,
		mapper:         mapper.NewChatMapper(),
		renderer:       renderer,
		progress:       progressBus,
		maxUploadBytes: maxUploadBytes,
		logger:         log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	r.Get("/", c.Index)
	r.Post("/process", c.ProcessForm)
	r.Post("/ask", c.AskForm)
	r.Post("/reset", c.ResetForm)

	api := r.Group("/api/v1")
	api.Post("/process", c.Process)
	api.Post("/ask", c.Ask)
	api.Get("/history", c.History)
	api.Delete("/session", c.DeleteSession)
	api.Get("/ws/progress", func(ctx *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(ctx) {
			return fiber.ErrUpgradeRequired
		}
		ctx.Locals("progress_session", serverutils.SessionID(ctx))
		return ctx.Next()
	}, websocket.New(func(conn *websocket.Conn) {
		sid, _ := conn.Locals("progress_session").(string)
		internalWS.ServeProgress(c.progress, conn, sid, c.logger)
	}))
}

// HTML front end

func (c *chatController) render(ctx *fiber.Ctx, status int, errMsg string) error {
	sid := serverutils.SessionID(ctx)
	page := view.NewPage(c.mapper.SessionToDTO(c.chatService.Session(sid)), c.chatService.TakeNotice(sid), errMsg)

	var buf bytes.Buffer
	if err := c.renderer.Render(&buf, page); err != nil {
		return err
	}
	ctx.Type("html", "utf-8")
	return ctx.Status(status).Send(buf.Bytes())
}

// renderError shows err inline. An empty batch already left its notice on
// the session, so no separate error line is shown for it.
func (c *chatController) renderError(ctx *fiber.Ctx, err error) error {
	status, msg := serverutils.StatusFor(err)
	if errors.Is(err, apperror.ErrEmptyInput) {
		msg = ""
	}
	return c.render(ctx, status, msg)
}

func (c *chatController) Index(ctx *fiber.Ctx) error {
	return c.render(ctx, fiber.StatusOK, "")
}

func (c *chatController) ProcessForm(ctx *fiber.Ctx) error {
	docs, err := c.readUploads(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}
	if _, err := c.chatService.Process(ctx.UserContext(), serverutils.SessionID(ctx), docs); err != nil {
		return c.renderError(ctx, err)
	}
	return ctx.Redirect("/", fiber.StatusSeeOther)
}

func (c *chatController) AskForm(ctx *fiber.Ctx) error {
	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return c.renderError(ctx, fiber.NewError(fiber.StatusBadRequest, "invalid form"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return c.renderError(ctx, err)
	}
	if _, err := c.chatService.Ask(ctx.UserContext(), serverutils.SessionID(ctx), req.Question); err != nil {
		return c.renderError(ctx, err)
	}
	return ctx.Redirect("/", fiber.StatusSeeOther)
}

func (c *chatController) ResetForm(ctx *fiber.Ctx) error {
	if err := c.chatService.Reset(serverutils.SessionID(ctx)); err != nil {
		return c.renderError(ctx, err)
	}
	return ctx.Redirect("/", fiber.StatusSeeOther)
}

// JSON API

func (c *chatController) Process(ctx *fiber.Ctx) error {
	docs, err := c.readUploads(ctx)
	if err != nil {
		return err
	}

	res, err := c.chatService.Process(ctx.UserContext(), serverutils.SessionID(ctx), docs)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success process documents", c.mapper.SessionToDTO(*res)))
}

func (c *chatController) Ask(ctx *fiber.Ctx) error {
	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	turn, err := c.chatService.Ask(ctx.UserContext(), serverutils.SessionID(ctx), req.Question)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success answer question", c.mapper.AnswerToDTO(turn)))
}

func (c *chatController) History(ctx *fiber.Ctx) error {
	res := c.chatService.Session(serverutils.SessionID(ctx))
	return ctx.JSON(serverutils.SuccessResponse("Success show session", c.mapper.SessionToDTO(res)))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	if err := c.chatService.Reset(serverutils.SessionID(ctx)); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success reset session", nil))
}

// readUploads returns every non-empty file of the upload field. A request
// without any files yields an empty slice, not an error. A multipart body that
// cannot be parsed is a bad request.
func (c *chatController) readUploads(ctx *fiber.Ctx) ([]ingest.Document, error) {
	if !strings.HasPrefix(strings.ToLower(ctx.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := ctx.MultipartForm()
	if errors.Is(err, fasthttp.ErrNoMultipartForm) {
		return nil, nil
	}
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "malformed multipart body")
	}

	var (
		docs  []ingest.Document
		total int64
	)
	for _, fh := range form.File[uploadField] {
		if fh.Filename == "" || fh.Size == 0 {
			continue
		}
		total += fh.Size
		if c.maxUploadBytes > 0 && total > c.maxUploadBytes {
			return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge,
				fmt.Sprintf("uploads exceed %d MB", c.maxUploadBytes/(1024*1024)))
		}

		content, err := readFile(fh)
		if err != nil {
			return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
		}
		docs = append(docs, ingest.Document{Name: fh.Filename, Content: content})
	}
	return docs, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
