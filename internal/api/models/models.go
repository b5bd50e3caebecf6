package models

import (
	"github.com/smazurov/dropzone/internal/cache"
	"github.com/smazurov/dropzone/internal/cutter"
	"github.com/smazurov/dropzone/internal/hardware"
	"github.com/smazurov/dropzone/internal/history"
	"github.com/smazurov/dropzone/internal/media"
	"github.com/smazurov/dropzone/internal/preview"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Hardware models
type HardwareResponse struct {
	Body struct {
		Profile *hardware.Profile `json:"profile" doc:"Detected hardware encoding profile"`
		Summary string            `json:"summary" example:"nvidia: h264_nvenc" doc:"Human readable summary"`
	}
}

// Media models
type PathQuery struct {
	Path string `query:"path" required:"true" minLength:"1" example:"/media/card/GX010001.MP4" doc:"Absolute path of a video file"`
}

type ProbeResponse struct {
	Body struct {
		Path     string           `json:"path" doc:"Probed file"`
		Info     *media.VideoInfo `json:"info" doc:"Stream and format properties"`
		Duration string           `json:"duration" example:"2:05" doc:"Formatted duration"`
		Label    string           `json:"label" example:"1920x1080 @ 29.97fps" doc:"Short format label"`
	}
}

type KeyframesRequest struct {
	Path    string `query:"path" required:"true" minLength:"1" example:"/media/card/GX010001.MP4" doc:"Absolute path of a video file"`
	Refresh bool   `query:"refresh" doc:"Re-probe instead of using the cached index"`
}

type KeyframesResponse struct {
	Body struct {
		Path      string    `json:"path" doc:"Probed file"`
		Count     int       `json:"count" example:"42" doc:"Number of keyframes"`
		Keyframes []float64 `json:"keyframes" doc:"Keyframe timestamps in seconds"`
	}
}

// Cut models
type TrimRequest struct {
	Body struct {
		Path     string  `json:"path" minLength:"1" example:"/media/card/GX010001.MP4" doc:"File to trim in place"`
		Start    float64 `json:"start" minimum:"0" example:"12.5" doc:"Start of the kept range in seconds"`
		End      float64 `json:"end" minimum:"0" example:"48" doc:"End of the kept range in seconds"`
		Software bool    `json:"software,omitempty" doc:"Skip hardware encoders"`
	}
}

type TrimResponse struct {
	Body struct {
		Path     string      `json:"path" doc:"Trimmed file"`
		Plan     cutter.Plan `json:"plan" doc:"Executed cut plan"`
		Duration float64     `json:"duration" example:"35.5" doc:"Resulting duration in seconds"`
	}
}

type SplitRequest struct {
	Body struct {
		Path     string  `json:"path" minLength:"1" example:"/media/card/GX010001.MP4" doc:"File to split"`
		At       float64 `json:"at" minimum:"0" example:"30" doc:"Split point in seconds"`
		First    string  `json:"first,omitempty" doc:"Output path of the first part"`
		Second   string  `json:"second,omitempty" doc:"Output path of the second part"`
		Software bool    `json:"software,omitempty" doc:"Skip hardware encoders"`
	}
}

type SplitResponse struct {
	Body struct {
		First  string           `json:"first" doc:"First part"`
		Second string           `json:"second" doc:"Second part"`
		Plan   cutter.SplitPlan `json:"plan" doc:"Executed split plan"`
	}
}

// Preview models
type PreviewRequest struct {
	Body struct {
		Sources []string `json:"sources" minItems:"1" doc:"Ordered source clip paths"`
	}
}

type JobResponse struct {
	Body struct {
		JobID string `json:"job_id" example:"0b6f1c7e-7d3c-4b0b-9a53-4cf1b6b1f4a2" doc:"Preview job identifier"`
	}
}

type PreviewStatusResponse struct {
	Body preview.Status
}

type CancelResponse struct {
	Body struct {
		Cancelled bool `json:"cancelled" doc:"Whether a running build was cancelled"`
	}
}

// Cache models
type CacheResponse struct {
	Body struct {
		Entries []cache.Entry `json:"entries" doc:"Working copies ordered by copy path"`
		Count   int           `json:"count" example:"3" doc:"Number of entries"`
	}
}

// History models
type HistoryListRequest struct {
	Limit int `query:"limit" minimum:"0" maximum:"1000" default:"100" doc:"Maximum number of records"`
}

type HistoryListResponse struct {
	Body struct {
		Records []history.Record `json:"records" doc:"Most recently processed clips first"`
		Count   int              `json:"count" example:"12" doc:"Number of records"`
	}
}

type IdentityPath struct {
	Name string `path:"name" example:"GX010001.MP4" doc:"Clip file name"`
	Size int64  `path:"size" example:"104857600" doc:"Clip size in bytes"`
}

type HistoryRecordResponse struct {
	Body history.Record
}

type HistoryMarkRequest struct {
	Body struct {
		Path    string         `json:"path" minLength:"1" doc:"Clip to record"`
		Status  history.Status `json:"status" enum:"processed,uploaded,failed" doc:"Processing outcome"`
		Message string         `json:"message,omitempty" doc:"Free form note"`
	}
}

// Upload models
type UploadRequest struct {
	Body struct {
		Dir string `json:"dir" minLength:"1" example:"/home/jumper/exports/2025-06-14" doc:"Directory to upload"`
	}
}

type UploadResponse struct {
	Body struct {
		Success bool   `json:"success" doc:"Whether the upload succeeded"`
		Message string `json:"message" example:"Uploaded 4 files to /mnt/club/jumps" doc:"Uploader message"`
	}
}

// Log models
type LogLevelRequest struct {
	Module string `path:"module" example:"cutter" doc:"Logger module"`
	Body   struct {
		Level string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New level"`
	}
}

type LogLevelResponse struct {
	Body struct {
		Module string `json:"module" doc:"Logger module"`
		Level  string `json:"level" doc:"Applied level"`
	}
}
