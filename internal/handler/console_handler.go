package handler

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/greetbot/internal/greeting"
	"github.com/hitoshi/greetbot/internal/middleware"
	"github.com/hitoshi/greetbot/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var consoleTemplate = template.Must(template.ParseFS(templateFS, "templates/console.html"))

// ConsoleServiceInterface はコンソールハンドラーが必要とするサービスインターフェース。
type ConsoleServiceInterface interface {
	ListConsole(ctx context.Context, userID uint64) ([]greeting.ConsoleGuild, error)
	UpdateGreeting(ctx context.Context, userID uint64, channelID, message string) (*model.Greeting, error)
}

// ConsoleHandler は管理コンソールのHTTPハンドラー。
type ConsoleHandler struct {
	service ConsoleServiceInterface
}

// NewConsoleHandler はConsoleHandlerを生成する。
func NewConsoleHandler(service ConsoleServiceInterface) *ConsoleHandler {
	return &ConsoleHandler{service: service}
}

// consolePage はテンプレートに渡す値。
type consolePage struct {
	UserID    uint64
	CSRFToken string
	Guilds    []greeting.ConsoleGuild
	Saved     bool
	Error     string
	MaxLength int
}

// consoleErrorMessages はフォーム送信失敗時にコンソールへ表示する文言。
// クエリの値はそのまま表示せず、既知のコードのみ文言に変換する。
var consoleErrorMessages = map[string]string{
	model.ErrCodeNotAdministrator:  "このギルドの管理者権限がありません。",
	model.ErrCodeUnknownChannel:    "チャンネルが見つかりません。再読み込みしてから選び直してください。",
	model.ErrCodeChannelNotInGuild: "選択したチャンネルはこのギルドに属していません。",
	model.ErrCodeMemberNotFound:    "ギルドのメンバーではありません。",
	model.ErrCodeGuildNotFound:     "ボットが参加していないギルドです。",
	model.ErrCodeInvalidGreeting:   "メッセージが空か、長すぎます。",
	model.ErrCodeInvalidRequest:    "リクエストが不正です。",
	model.ErrCodeCSRFValidation:    "フォームの有効期限が切れました。再読み込みしてから送信してください。",
	model.ErrCodeRateLimited:       "操作が多すぎます。しばらく待ってから再度お試しください。",
	model.ErrCodeUnauthenticated:   "ログインが必要です。",
	middleware.ErrorCodeInternal:   "内部エラーが発生しました。しばらく待ってから再度お試しください。",
}

// consoleErrorMessage はエラーコードを表示用の文言に変換する。
func consoleErrorMessage(code string) string {
	if code == "" {
		return ""
	}
	if msg, ok := consoleErrorMessages[code]; ok {
		return msg
	}
	return "保存に失敗しました。"
}

// greetingResponse は挨拶設定更新のJSONレスポンス。
type greetingResponse struct {
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Index は管理者であるギルドの一覧と設定フォームを表示する。
// GET /
func (h *ConsoleHandler) Index(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	guilds, err := h.service.ListConsole(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page := consolePage{
		UserID:    userID,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Guilds:    guilds,
		Saved:     r.URL.Query().Get("saved") == "1",
		Error:     consoleErrorMessage(r.URL.Query().Get("error")),
		MaxLength: model.MaxGreetingLength,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := consoleTemplate.Execute(w, page); err != nil {
		slog.Error("failed to render console", slog.String("error", err.Error()))
	}
}

// Update はチャンネルと挨拶メッセージを更新する。
// PUT /  (HTMLフォームからは POST / + _method=put)
func (h *ConsoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		handleServiceError(w, r, model.NewInvalidRequestError("フォームを解析できません"))
		return
	}

	g, err := h.service.UpdateGreeting(r.Context(), userID, r.PostForm.Get("channel_id"), r.PostForm.Get("message"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// ブラウザのフォーム送信はコンソールに戻す
	if middleware.WantsHTML(r) {
		http.Redirect(w, r, "/?saved=1", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(greetingResponse{
		GuildID:   g.GuildID,
		ChannelID: g.ChannelID,
		Message:   g.Message,
		UpdatedAt: g.UpdatedAt,
	})
}
