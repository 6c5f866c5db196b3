package http

import (
	"mime"
	"net/http"

	apperrors "github.com/Girirajbhatt/careerhub/pkg/errors"
	"github.com/Girirajbhatt/careerhub/pkg/httputil"
)

// ContentTypeJSON rejects request bodies declared as anything other than
// application/json. A missing Content-Type is accepted so that bodiless
// POSTs such as logout and cookie-based refresh pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			ct := r.Header.Get("Content-Type")
			if ct == "" {
				break
			}
			mediaType, _, err := mime.ParseMediaType(ct)
			if err != nil || mediaType != "application/json" {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Kind:    apperrors.CodeInvalidInput,
					Message: "Content-Type must be application/json",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
