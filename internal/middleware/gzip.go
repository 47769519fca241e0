package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
)

type compressWriter struct {
	http.ResponseWriter
	zw *gzip.Writer
}

func (c *compressWriter) Write(p []byte) (int, error) {
	return c.zw.Write(p)
}

// GzipMiddleware распаковывает сжатые тела запросов и сжимает ответы,
// если клиент поддерживает gzip.
func GzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Распаковка тела запроса
		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			defer zr.Close()
			r.Body = io.NopCloser(zr)
		}

		// Сжатие ответа
		if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			zw := gzip.NewWriter(w)
			defer zw.Close()

			w.Header().Set("Content-Encoding", "gzip")
			w = &compressWriter{ResponseWriter: w, zw: zw}
		}

		next.ServeHTTP(w, r)
	})
}
