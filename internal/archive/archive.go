// Package archive keeps a copy of every accepted webhook body in S3 for reconciliation.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/notify"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/providers/awsconf"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// PutObjectAPI is the S3 call the archiver needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Archiver struct {
	api        PutObjectAPI
	bucket     string
	dispatcher *notify.Dispatcher
	log        *zap.Logger
}

type Params struct {
	fx.In

	Config     config.Config
	AWSConfig  *aws.Config `optional:"true"`
	Dispatcher *notify.Dispatcher
	Log        *zap.Logger
}

// Provide returns nil when no bucket is configured; a nil Archiver ignores every call.
func Provide(p Params) *Archiver {
	bucket := strings.TrimSpace(p.Config.Archive.Bucket)
	if bucket == "" || p.AWSConfig == nil {
		p.Log.Info("webhook archive disabled")
		return nil
	}
	pathStyle := awsconf.HasEndpointOverride(p.AWSConfig)
	client := s3.NewFromConfig(*p.AWSConfig, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
	})
	return New(client, bucket, p.Dispatcher, p.Log)
}

func New(api PutObjectAPI, bucket string, dispatcher *notify.Dispatcher, log *zap.Logger) *Archiver {
	return &Archiver{api: api, bucket: bucket, dispatcher: dispatcher, log: log.Named("archive")}
}

// Key returns webhooks/{provider}/{yyyy}/{mm}/{dd}/{event_id}.json.
func Key(provider, eventID string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("webhooks/%s/%04d/%02d/%02d/%s.json",
		strings.ToLower(provider), at.Year(), int(at.Month()), at.Day(), sanitize(eventID))
}

// Store uploads the payload synchronously.
func (a *Archiver) Store(ctx context.Context, provider, eventID string, at time.Time, payload []byte) error {
	if a == nil {
		return nil
	}
	_, err := a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(Key(provider, eventID, at)),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	return err
}

// StoreAsync uploads on the worker pool. Failures are only logged.
func (a *Archiver) StoreAsync(ctx context.Context, provider, eventID string, at time.Time, payload []byte) {
	if a == nil {
		return
	}
	body := append([]byte(nil), payload...)
	if a.dispatcher == nil {
		if err := a.Store(ctx, provider, eventID, at, body); err != nil {
			a.log.Warn("archive webhook failed", zap.String("provider", provider), zap.String("event_id", eventID), zap.Error(err))
		}
		return
	}
	a.dispatcher.Go(ctx, "archive."+provider, func(ctx context.Context) error {
		return a.Store(ctx, provider, eventID, at, body)
	})
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

var Module = fx.Module("archive",
	fx.Provide(Provide),
)
