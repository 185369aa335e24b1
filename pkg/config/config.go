// Package config aggregates every per-component knob named across
// spec.md §4 into one PipelineConfig, and binds it to command-line
// flags the way doismellburning-samoyed's appserver/kissutil bind
// their own flat flag sets with spf13/pflag.
package config

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/dlparker/palaver/pkg/rescan"
	"github.com/dlparker/palaver/pkg/transcriber"
	"github.com/dlparker/palaver/pkg/vad"
)

// PipelineConfig aggregates the tunables of every pipeline component.
// Loading it from a file is out of scope (spec.md §1 treats config
// files as an external concern); BindFlags wires it to the process's
// command line instead.
type PipelineConfig struct {
	// C1/C2 audio capture and downsampling.
	DeviceSampleRate int
	DeviceChannels   int
	BlockMillis      int
	TargetSampleRate int

	// C3 VADFilter.
	VADMode         vad.Mode
	VADThreshold    float64
	VADMinSilenceMS int
	VADSpeechPadMS  int

	// C5 Transcriber.
	TranscriberQueueDepth  int
	TranscriberBufCapacity int
	TranscriberDropOnFull  bool
	STTProvider            string // "groq", "openai", "deepgram", "assemblyai"
	STTAPIKey              string
	STTModel               string // model name, meaningful for groq/openai

	// C6 CommandDispatch.
	CommandScore   float64
	AttentionScore float64
	RequireAlerts  bool

	// C7 DraftMaker. cmd/palaverd does not pass DraftRatioMin to the
	// draft maker, which always uses draft.DefaultRatioMin.
	DraftRatioMin float64

	// C9 TopErrorHandler.
	ShutdownTimeout time.Duration

	// C10 EventRouter.
	RouterPreBufferSeconds float64
	RouterAuthorBase       string

	// C11 Rescanner. Mode selects which binary role cmd/palaverd plays:
	// "capture" (default) runs the normal local pipeline; "rescan" dials
	// RescanRemoteURL's WebSocket event channel and runs a Rescanner instead.
	Mode                  string
	RescanRemoteURL       string
	RescanForceEndTimeout time.Duration
	RescanFlushTimeout    time.Duration

	// C12 DraftStore.
	StoreDriver       string // "memory" or "postgres"
	StoreDSN          string
	SideFileDir       string
	SideFileEnabled   bool
	SideFileWriteText bool
	SideFileWriteWAV  bool // passed to SideFileWriter; cmd/palaverd itself only calls WriteText

	// HTTP surface (spec.md §6 revision endpoints).
	ListenAddr string
}

// Default returns the configuration the documented component defaults
// assemble to, mirroring each package's own New/DefaultParams zero
// values so a flagless run behaves the same as a direct library caller.
func Default() PipelineConfig {
	normal := vad.DefaultParams(vad.ModeNormal)
	return PipelineConfig{
		DeviceSampleRate: 48000,
		DeviceChannels:   1,
		BlockMillis:      30,
		TargetSampleRate: vad.SamplingRate,

		VADMode:         vad.ModeNormal,
		VADThreshold:    normal.Threshold,
		VADMinSilenceMS: normal.MinSilenceMS,
		VADSpeechPadMS:  normal.SpeechPadMS,

		TranscriberQueueDepth:  1,
		TranscriberBufCapacity: transcriber.DefaultBufferCapacity,
		TranscriberDropOnFull:  false,
		STTProvider:            "groq",
		STTModel:               "whisper-large-v3",

		CommandScore:   75.0,
		AttentionScore: 70.0,
		RequireAlerts:  false,

		DraftRatioMin: 85.0,

		ShutdownTimeout: 10 * time.Second,

		RouterPreBufferSeconds: 0,
		RouterAuthorBase:       "",

		Mode:                  "capture",
		RescanRemoteURL:       "",
		RescanForceEndTimeout: rescan.DefaultForceEndTimeout,
		RescanFlushTimeout:    10 * time.Second,

		StoreDriver:       "memory",
		StoreDSN:          "",
		SideFileDir:       "",
		SideFileEnabled:   false,
		SideFileWriteText: true,
		SideFileWriteWAV:  false,

		ListenAddr: ":8088",
	}
}

// BindFlags registers every PipelineConfig field on fs, defaulting to
// whatever cfg already holds (normally config.Default()). Call
// fs.Parse, then invoke the returned resolver before reading cfg's
// fields; the resolver folds flags that affect more than one field
// (currently just --vad-long-note) into cfg.
func BindFlags(cfg *PipelineConfig, fs *pflag.FlagSet) (resolve func()) {
	var longNote bool
	fs.IntVar(&cfg.DeviceSampleRate, "device-sample-rate", cfg.DeviceSampleRate, "capture device sample rate in Hz")
	fs.IntVar(&cfg.DeviceChannels, "device-channels", cfg.DeviceChannels, "capture device input channel count")
	fs.IntVar(&cfg.BlockMillis, "block-millis", cfg.BlockMillis, "capture callback cadence in milliseconds")
	fs.IntVar(&cfg.TargetSampleRate, "target-sample-rate", cfg.TargetSampleRate, "downsampled rate fed to VAD/STT")

	fs.Float64Var(&cfg.VADThreshold, "vad-threshold", cfg.VADThreshold, "VAD speech probability threshold")
	fs.IntVar(&cfg.VADMinSilenceMS, "vad-min-silence-ms", cfg.VADMinSilenceMS, "silence duration before a speech chunk closes")
	fs.IntVar(&cfg.VADSpeechPadMS, "vad-speech-pad-ms", cfg.VADSpeechPadMS, "pre-speech padding in ms, reported as PadMS on SpeechStart (no audio is prepended)")
	fs.BoolVar(&longNote, "vad-long-note", false, "use the long-note VAD profile (5s min silence) instead of normal")

	fs.IntVar(&cfg.TranscriberQueueDepth, "transcriber-queue-depth", cfg.TranscriberQueueDepth, "bounded STT job queue depth")
	fs.IntVar(&cfg.TranscriberBufCapacity, "transcriber-buffer-capacity", cfg.TranscriberBufCapacity, "accumulation buffer capacity in samples")
	fs.BoolVar(&cfg.TranscriberDropOnFull, "transcriber-drop-on-full", cfg.TranscriberDropOnFull, "drop jobs instead of blocking when the queue is full")
	fs.StringVar(&cfg.STTProvider, "stt-provider", cfg.STTProvider, "STT backend: groq, openai, deepgram, or assemblyai")
	fs.StringVar(&cfg.STTAPIKey, "stt-api-key", cfg.STTAPIKey, "API key for the selected STT backend")
	fs.StringVar(&cfg.STTModel, "stt-model", cfg.STTModel, "model name, used by the groq and openai backends")

	fs.Float64Var(&cfg.CommandScore, "command-score", cfg.CommandScore, "fuzzy match floor for command phrases")
	fs.Float64Var(&cfg.AttentionScore, "attention-score", cfg.AttentionScore, "fuzzy match floor for attention/wake phrases")
	fs.BoolVar(&cfg.RequireAlerts, "require-alerts", cfg.RequireAlerts, "require an alert wake phrase before dispatching commands")

	fs.Float64Var(&cfg.DraftRatioMin, "draft-ratio-min", cfg.DraftRatioMin, "fuzzy match floor for draft start/end phrases (not read by palaverd's draft maker, which uses draft.DefaultRatioMin)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "supervisor clean shutdown grace period")

	fs.Float64Var(&cfg.RouterPreBufferSeconds, "router-pre-buffer-seconds", cfg.RouterPreBufferSeconds, "pre-speech audio buffered for newly joined remote clients (0 disables)")
	fs.StringVar(&cfg.RouterAuthorBase, "router-author-base", cfg.RouterAuthorBase, "author_uri base stamped on outgoing remote events")

	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "palaverd role: capture (default) or rescan")
	fs.StringVar(&cfg.RescanRemoteURL, "rescan-remote-url", cfg.RescanRemoteURL, "remote palaverd's /ws URL to rescan against, required when --mode=rescan")
	fs.DurationVar(&cfg.RescanForceEndTimeout, "rescan-force-end-timeout", cfg.RescanForceEndTimeout, "time to wait for a local DraftEnd before synthesizing one")
	fs.DurationVar(&cfg.RescanFlushTimeout, "rescan-flush-timeout", cfg.RescanFlushTimeout, "time to wait for the local transcriber to flush pending audio")

	fs.StringVar(&cfg.StoreDriver, "store-driver", cfg.StoreDriver, "draft store backend: memory or postgres")
	fs.StringVar(&cfg.StoreDSN, "store-dsn", cfg.StoreDSN, "postgres DSN, required when --store-driver=postgres")
	fs.StringVar(&cfg.SideFileDir, "sidefile-dir", cfg.SideFileDir, "directory for optional text/WAV sidecar files")
	fs.BoolVar(&cfg.SideFileEnabled, "sidefile-enabled", cfg.SideFileEnabled, "enable sidecar file writing")
	fs.BoolVar(&cfg.SideFileWriteText, "sidefile-write-text", cfg.SideFileWriteText, "write a .txt sidecar per draft")
	fs.BoolVar(&cfg.SideFileWriteWAV, "sidefile-write-wav", cfg.SideFileWriteWAV, "enable SideFileWriter.WriteWAV sidecars (palaverd's draft handler writes only .txt sidecars)")

	fs.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "HTTP/WebSocket listen address")

	return func() {
		if longNote {
			cfg.VADMode = vad.ModeLongNote
			cfg.VADMinSilenceMS = vad.DefaultParams(vad.ModeLongNote).MinSilenceMS
		}
	}
}
