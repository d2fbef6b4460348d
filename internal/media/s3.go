package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sony/gobreaker"

	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
)

type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type objectDeleter interface {
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Gateway implements Gateway backed by an S3-compatible service. Calls pass
// through a circuit breaker so a failing store is not hammered by every request.
type S3Gateway struct {
	uploader objectUploader
	deleter  objectDeleter
	bucket   string
	baseURL  string
	prober   DurationProber
	breaker  *gobreaker.CircuitBreaker
}

// NewS3Gateway configures a gateway targeting the provided object store.
func NewS3Gateway(ctx context.Context, cfg config.ObjectStoreConfig, prober DurationProber) (*S3Gateway, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 gateway: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	return newS3Gateway(uploader, client, cfg.Bucket, cfg.PublicBaseURL, prober), nil
}

func newS3Gateway(uploader objectUploader, deleter objectDeleter, bucket, baseURL string, prober DurationProber) *S3Gateway {
	return &S3Gateway{
		uploader: uploader,
		deleter:  deleter,
		bucket:   bucket,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		prober:   prober,
		breaker:  newBreaker("media-s3"),
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// A caller hanging up or a missing key says nothing about the health of the store.
			var missing *s3types.NoSuchKey
			return err == nil || errors.Is(err, context.Canceled) || errors.As(err, &missing)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("media circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
}

// Upload stores the file at localPath under a fresh key and returns its public location.
func (g *S3Gateway) Upload(ctx context.Context, localPath string, kind Kind) (Asset, error) {
	if g == nil || g.uploader == nil {
		return Asset{}, ErrUnavailable
	}
	if !kind.Valid() {
		return Asset{}, fmt.Errorf("s3 gateway: unknown media kind %q", kind)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return Asset{}, fmt.Errorf("open staged file: %w", err)
	}
	defer file.Close()

	var duration float64
	if kind == KindVideo && g.prober != nil {
		duration, err = g.prober.Probe(ctx, localPath)
		if err != nil {
			// Duration is informational; the upload proceeds without it.
			logging.FromContext(ctx).Warn("probe video duration", "path", localPath, "error", err)
			duration = 0
		}
	}

	key := objectKey(kind, localPath)
	_, err = g.breaker.Execute(func() (interface{}, error) {
		return g.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(g.bucket),
			Key:    aws.String(key),
			Body:   file,
			ACL:    s3types.ObjectCannedACLPublicRead,
		})
	})
	observe("upload", err)
	if err != nil {
		return Asset{}, g.wrap("upload "+key, err)
	}

	return Asset{URL: g.publicURL(key), PublicID: key, Duration: duration}, nil
}

// Delete removes the object identified by publicID. Deleting a missing object succeeds.
func (g *S3Gateway) Delete(ctx context.Context, publicID string, kind Kind) error {
	if g == nil || g.deleter == nil {
		return ErrUnavailable
	}
	key := strings.TrimLeft(publicID, "/")
	if key == "" {
		return nil
	}
	if kind.Valid() && !strings.HasPrefix(key, string(kind)+"/") {
		return fmt.Errorf("s3 gateway: %s is not a %s object", key, kind)
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return g.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(g.bucket),
			Key:    aws.String(key),
		})
	})
	observe("delete", err)
	if err != nil {
		var missing *s3types.NoSuchKey
		if errors.As(err, &missing) {
			return nil
		}
		return g.wrap("delete "+key, err)
	}
	return nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func observe(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.MediaOperationsTotal.WithLabelValues(operation, status).Inc()
}

func (g *S3Gateway) wrap(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("s3 gateway %s: %w", op, ErrUnavailable)
	}
	return fmt.Errorf("s3 gateway %s: %w", op, err)
}

func (g *S3Gateway) publicURL(key string) string {
	if g.baseURL == "" {
		return key
	}
	return fmt.Sprintf("%s/%s", g.baseURL, key)
}

func objectKey(kind Kind, localPath string) string {
	return fmt.Sprintf("%s/%s%s", kind, models.NewID(), strings.ToLower(filepath.Ext(localPath)))
}

var _ Gateway = (*S3Gateway)(nil)
