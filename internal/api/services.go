package api

import (
	"context"

	"github.com/smazurov/dropzone/internal/cache"
	"github.com/smazurov/dropzone/internal/cutter"
	"github.com/smazurov/dropzone/internal/hardware"
	"github.com/smazurov/dropzone/internal/history"
	"github.com/smazurov/dropzone/internal/media"
	"github.com/smazurov/dropzone/internal/preview"
	"github.com/smazurov/dropzone/internal/upload"
)

// MediaProber is implemented by *media.Prober.
type MediaProber interface {
	VideoInfo(ctx context.Context, path string) (*media.VideoInfo, error)
	Keyframes(ctx context.Context, path string, forceRefresh bool) media.KeyframeIndex
}

// CutService is implemented by *cutter.Cutter and the cmd engine.
type CutService interface {
	Trim(ctx context.Context, path string, start, end float64, opts ...cutter.EncodeOption) (cutter.Plan, error)
	Split(ctx context.Context, path string, at float64, first, second string, opts ...cutter.EncodeOption) (cutter.SplitPlan, error)
}

// HardwareDetector is implemented by *hardware.Detector.
type HardwareDetector interface {
	Detect(ctx context.Context) (*hardware.Profile, error)
	Refresh(ctx context.Context) (*hardware.Profile, error)
}

// PreviewSession is implemented by *preview.Session.
type PreviewSession interface {
	Submit(sources []string) string
	Retry() (string, error)
	Cancel() bool
	Reset() error
	Status() preview.Status
}

// CacheView is implemented by *cache.Cache.
type CacheView interface {
	Entries() []cache.Entry
}

// HistoryStore is implemented by *history.Store.
type HistoryStore interface {
	MarkProcessed(ctx context.Context, id cache.Identity, status history.Status, source, message string) error
	Status(ctx context.Context, id cache.Identity) (history.Record, bool, error)
	List(ctx context.Context, limit int) ([]history.Record, error)
	Forget(ctx context.Context, id cache.Identity) (bool, error)
}

// Services are the engine collaborators exposed over HTTP. Nil members
// leave their routes unregistered.
type Services struct {
	Prober   MediaProber
	Cutter   CutService
	Hardware HardwareDetector
	Preview  PreviewSession
	Cache    CacheView
	History  HistoryStore
	Uploader upload.Uploader
	// UploadServer returns the currently configured share.
	UploadServer func() upload.Server
}
