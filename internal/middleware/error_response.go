package middleware

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/greetbot/internal/model"
)

// ErrorCodeInternal は内部エラー時に返すエラーコード。
const ErrorCodeInternal = "INTERNAL_ERROR"

// ErrorResponseBody はJSONエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

var errorPageTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="ja">
<head><meta charset="utf-8"><title>greetbot - {{.Code}}</title></head>
<body>
<h1>{{.Message}}</h1>
<p>{{.Action}}</p>
<p><a href="/">コンソールへ戻る</a></p>
</body>
</html>
`))

// WantsHTML はブラウザからのリクエスト（AcceptにHTMLを含む）かどうかを判定する。
func WantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// ConsoleErrorURL はフォーム送信失敗時の戻り先を返す。
func ConsoleErrorURL(code string) string {
	return "/?error=" + url.QueryEscape(code)
}

// WriteError はリクエストの種類に応じてエラーレスポンスを書き込む。
//   - ブラウザのフォーム送信: コンソールへ303で戻し、エラーコードをクエリで渡す
//   - ブラウザのページ遷移: エラーページを返す
//   - それ以外: 統一フォーマットのJSONを返す
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *model.APIError) {
	if !WantsHTML(r) {
		writeJSONError(w, statusCode, apiErr)
		return
	}

	if !isSafeMethod(r.Method) {
		http.Redirect(w, r, ConsoleErrorURL(apiErr.Code), http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := errorPageTemplate.Execute(w, apiErr); err != nil {
		slog.Error("failed to render error page", slog.String("error", err.Error()))
	}
}

// WriteInternalError は内部エラーを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalError(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusInternalServerError, &model.APIError{
		Code:     ErrorCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

func writeJSONError(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}
