// Package mockserver stands in for the remote classification service. It
// speaks the same contract: POST /predict/ with a multipart "file" part,
// answered by {"deepfake_probability": p}.
package mockserver

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// PredictPath is the route the classifier client posts to.
const PredictPath = "/predict/"

// Options configures the stand-in.
type Options struct {
	// Probability is returned for every image. A negative value derives a
	// stable per-image probability from the image bytes.
	Probability float64
	// FailStatus, when non-zero, is returned instead of a prediction.
	FailStatus int
	// Latency delays every response.
	Latency time.Duration
	Logger  *zap.Logger
}

// NewRouter builds the gin engine serving PredictPath.
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mock")

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST(PredictPath, func(c *gin.Context) {
		if opts.Latency > 0 {
			select {
			case <-time.After(opts.Latency):
			case <-c.Request.Context().Done():
				return
			}
		}
		if opts.FailStatus != 0 {
			logger.Info("forced failure", zap.Int("status", opts.FailStatus))
			c.JSON(opts.FailStatus, gin.H{"detail": http.StatusText(opts.FailStatus)})
			return
		}

		header, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "field required: file"})
			return
		}
		src, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "unable to open file"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read file"})
			return
		}
		_, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			logger.Warn("undecodable upload", zap.String("file", header.Filename), zap.Error(err))
			c.String(http.StatusInternalServerError, "Internal Server Error")
			return
		}
		logger.Debug("prediction requested", zap.String("file", header.Filename), zap.String("format", format))

		p := opts.Probability
		if p < 0 {
			p = DerivedProbability(data)
		}
		c.JSON(http.StatusOK, gin.H{"deepfake_probability": p})
	})

	return router
}

// DerivedProbability maps data to a stable probability in [0, 1] with four
// decimals.
func DerivedProbability(data []byte) float64 {
	sum := sha256.Sum256(data)
	v := binary.BigEndian.Uint64(sum[:8])
	return math.Round(float64(v)/float64(math.MaxUint64)*10000) / 10000
}
