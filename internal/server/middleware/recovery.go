package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"facebrasil.com.br/gamification/internal/httpx"
)

// Recoverer перехватывает панику обработчика и отвечает 500.
// http.ErrAbortHandler пробрасывается дальше: это штатный обрыв ответа.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.WithFields(log.Fields{
				"component":  "panic_recovery",
				"panic":      fmt.Sprintf("%v", rec),
				"stack":      string(debug.Stack()),
				"path":       r.URL.Path,
				"request_id": chimw.GetReqID(r.Context()),
			}).Error("ПАНИКА в обработчике — восстановлено")
			httpx.RespondError(w, r, fmt.Errorf("panic: %v", rec))
		}()
		next.ServeHTTP(w, r)
	})
}
