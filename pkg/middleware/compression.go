package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

const (
	DefaultCompression = gzip.DefaultCompression
	BestCompression    = gzip.BestCompression
	BestSpeed          = gzip.BestSpeed
)

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		gz, _ := gzip.NewWriterLevel(io.Discard, DefaultCompression)
		return gz
	},
}

type gzipWriter struct {
	gin.ResponseWriter
	gw *gzip.Writer
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	return g.gw.Write(data)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.gw.Write([]byte(s))
}

var compressibleTypes = []string{
	"application/json",
	"text/plain",
	"text/html",
	"text/xml",
	"application/xml",
}

func shouldCompress(c *gin.Context) bool {
	if !strings.Contains(c.Request.Header.Get("Accept-Encoding"), "gzip") {
		return false
	}
	contentType := c.Writer.Header().Get("Content-Type")
	if contentType == "" {
		// Checked before the handler runs, when no response type is set yet.
		return true
	}
	for _, ct := range compressibleTypes {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

// CompressionMiddleware gzips JSON responses from the metrics and job-listing
// endpoints. Audio playback and the Prometheus text exposition route are left
// alone: one streams a binary body, the other is already served to scrapers
// that don't negotiate gzip.
func CompressionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodHead ||
			c.Request.Header.Get("Connection") == "Upgrade" ||
			c.FullPath() == "/metrics" ||
			strings.HasSuffix(c.FullPath(), "/audio") ||
			!shouldCompress(c) {
			c.Next()
			return
		}

		gz := gzipWriterPool.Get().(*gzip.Writer)
		defer gzipWriterPool.Put(gz)
		gz.Reset(c.Writer)
		defer gz.Close()

		c.Writer.Header().Set("Content-Encoding", "gzip")
		c.Writer.Header().Set("Vary", "Accept-Encoding")
		c.Writer.Header().Del("Content-Length")

		c.Writer = &gzipWriter{ResponseWriter: c.Writer, gw: gz}
		c.Next()
	}
}
