// Command palaverd is the reference host for the palaver pipeline: it
// wires C1-C12 together behind a supervisor, serves the remote
// WebSocket event channel and the revision HTTP API, and binds every
// component knob to command-line flags.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dlparker/palaver/pkg/apiserver"
	"github.com/dlparker/palaver/pkg/audio"
	"github.com/dlparker/palaver/pkg/command"
	"github.com/dlparker/palaver/pkg/config"
	"github.com/dlparker/palaver/pkg/draft"
	"github.com/dlparker/palaver/pkg/events"
	"github.com/dlparker/palaver/pkg/logging"
	"github.com/dlparker/palaver/pkg/monitor"
	"github.com/dlparker/palaver/pkg/rescan"
	"github.com/dlparker/palaver/pkg/router"
	"github.com/dlparker/palaver/pkg/store"
	"github.com/dlparker/palaver/pkg/store/gormstore"
	"github.com/dlparker/palaver/pkg/supervisor"
	"github.com/dlparker/palaver/pkg/transcriber"
	"github.com/dlparker/palaver/pkg/transcriber/sttmodel"
	"github.com/dlparker/palaver/pkg/vad"
)

func main() {
	cfg := config.Default()
	fs := pflag.NewFlagSet("palaverd", pflag.ExitOnError)
	resolve := config.BindFlags(&cfg, fs)
	wavPath := fs.String("wav-file", "", "transcribe a WAV file instead of opening the capture device")
	fs.Parse(os.Args[1:])
	resolve()

	logger := logging.NewCharmLogger("palaverd")

	var err error
	switch cfg.Mode {
	case "rescan":
		err = runRescan(cfg, logger)
	default:
		err = runCapture(cfg, *wavPath, logger)
	}
	if err != nil {
		logger.Error("palaverd exited with error", "error", err)
		os.Exit(1)
	}
}

func buildSTTModel(cfg config.PipelineConfig) (transcriber.Model, error) {
	switch cfg.STTProvider {
	case "groq":
		return sttmodel.NewGroqModel(cfg.STTAPIKey, cfg.STTModel), nil
	case "openai":
		return sttmodel.NewOpenAIModel(cfg.STTAPIKey, cfg.STTModel), nil
	case "deepgram":
		return sttmodel.NewDeepgramModel(cfg.STTAPIKey), nil
	case "assemblyai":
		return sttmodel.NewAssemblyAIModel(cfg.STTAPIKey), nil
	default:
		return nil, fmt.Errorf("palaverd: unknown stt provider %q", cfg.STTProvider)
	}
}

func buildDraftStore(cfg config.PipelineConfig) (store.DraftStore, error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemStore(), nil
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.StoreDSN), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("palaverd: opening postgres: %w", err)
		}
		if err := gormstore.Migrate(db); err != nil {
			return nil, fmt.Errorf("palaverd: migrating draft store: %w", err)
		}
		return gormstore.New(db), nil
	default:
		return nil, fmt.Errorf("palaverd: unknown store driver %q", cfg.StoreDriver)
	}
}

// processShutdown implements supervisor.CleanShutdown/ForcedShutdown by
// stopping the audio source and HTTP server; clean attempts Stop/Close,
// forced just tears down the process.
type processShutdown struct {
	source  audio.Source
	httpSrv *http.Server
	forced  bool
}

func (p *processShutdown) Shutdown(message string) error {
	if p.forced {
		os.Exit(1)
		return nil
	}
	if p.source != nil {
		p.source.Stop()
	}
	if p.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		p.httpSrv.Shutdown(ctx)
	}
	return nil
}

// runCapture is palaverd's default role: capture local audio, run it
// through the full pipeline, and serve the revision HTTP API a remote
// Rescanner (runRescan, another palaverd process) posts back to.
func runCapture(cfg config.PipelineConfig, wavPath string, logger logging.Logger) error {
	sttModel, err := buildSTTModel(cfg)
	if err != nil {
		return err
	}
	draftStore, err := buildDraftStore(cfg)
	if err != nil {
		return err
	}
	sideFiles := store.NewSideFileWriter(cfg.SideFileDir, cfg.SideFileEnabled, cfg.SideFileWriteText, cfg.SideFileWriteWAV)

	r := router.New(cfg.RouterPreBufferSeconds, cfg.RouterAuthorBase, logger)
	mon := monitor.New()

	var source audio.Source
	if wavPath != "" {
		blocksize := cfg.DeviceSampleRate * cfg.BlockMillis / 1000
		source = audio.NewFileSource(wavPath, blocksize, true, logger)
	} else {
		source = audio.NewDeviceSource(cfg.DeviceSampleRate, cfg.DeviceChannels, cfg.BlockMillis, logger)
	}

	downsampler := audio.NewDownSampler(cfg.TargetSampleRate)
	vadModel := vad.NewRMSVAD(cfg.VADThreshold, cfg.VADMinSilenceMS)
	vadParams := vad.Params{
		Threshold:    cfg.VADThreshold,
		MinSilenceMS: cfg.VADMinSilenceMS,
		SpeechPadMS:  cfg.VADSpeechPadMS,
		SamplingRate: cfg.TargetSampleRate,
	}
	filter := vad.NewFilter(vadModel, vadParams, logger)
	merge := events.NewMerge(filter)

	dispatch := command.New(cfg.CommandScore, cfg.AttentionScore, cfg.RequireAlerts, logger)

	onDraft := func(de events.DraftEvent) {
		r.PublishDraft(context.Background(), de)
		if de.Kind != events.DraftEnd {
			return
		}
		if err := draftStore.Put(context.Background(), de.Draft); err != nil {
			logger.Error("storing draft failed", "error", err)
			return
		}
		if sideFiles.Enabled() {
			sideFiles.WriteText(de.Draft.DraftID, de.Draft.FullText)
		}
	}
	draftMaker := draft.New(onDraft, logger)

	onText := func(ev events.TextEvent) {
		r.PublishText(context.Background(), ev)
		mon.OnTextEvent(ev.AudioEndTime)
		draftMaker.OnTextEvent(ev)
		for _, cmdEv := range dispatch.OnTextEvent(ev) {
			switch cmdEv.Command {
			case events.CommandStartBlock:
				mon.OnStartBlock()
			case events.CommandStopBlock:
				mon.OnStopBlock()
			}
		}
	}

	var supHandler *supervisor.Handler
	onTranscriberError := func(err error) {
		supHandler.HandleError("transcriber", err)
	}
	trans := transcriber.New(sttModel, cfg.TranscriberQueueDepth, cfg.TranscriberBufCapacity, cfg.TranscriberDropOnFull, onText, onTranscriberError, logger)
	trans.Start()

	merge.SubscribePostVAD(func(c audio.AudioChunk) {
		r.PublishAudioChunk(context.Background(), c)
		if c.InSpeech {
			trans.HandleChunk(c.SourceID, c.SampleRate, c.Timestamp, c.Data)
			mon.OnSpeechChunk(c.Timestamp)
		}
	})
	merge.SubscribeLifecycle(func(ev audio.LifecycleEvent) {
		r.PublishLifecycle(context.Background(), ev)
		switch ev.Kind {
		case audio.LifecycleSpeechStop:
			trans.HandleSpeechStop()
		case audio.LifecycleStop:
			trans.HandleAudioStop()
			mon.OnAudioStop()
			draftMaker.ForceEnd()
		}
	})

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: apiserver.New(draftStore, r, false, logger).Handler(),
	}

	shutdown := &processShutdown{source: source, httpSrv: httpSrv}
	forcedShutdown := &processShutdown{source: source, httpSrv: httpSrv, forced: true}
	supHandler = supervisor.New(nil, shutdown, forcedShutdown, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	supHandler.WrapTask(ctx, &wg, "http", func(ctx context.Context) error {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	onChunk := func(c audio.AudioChunk) {
		downsampled, err := downsampler.Process(c)
		if err != nil {
			supHandler.HandleError("downsampler", err)
			return
		}
		if err := merge.HandleRawChunk(downsampled); err != nil {
			supHandler.HandleError("merge", err)
		}
	}
	onLifecycle := func(ev audio.LifecycleEvent) {
		merge.HandleSourceLifecycle(ev)
	}

	supHandler.WrapTask(ctx, &wg, "audio-source", func(ctx context.Context) error {
		return source.Start(onChunk, onLifecycle)
	})

	<-ctx.Done()
	logger.Info("shutdown signal received")
	shutdown.Shutdown("interrupt")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}
	return nil
}

// httpBaseFromWSURL turns a /ws URL (ws:// or wss://) into the HTTP(S)
// base its revision API lives at, stripping any path/query.
func httpBaseFromWSURL(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("palaverd: parse --rescan-remote-url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String(), nil
}

// runRescan is C11 Rescanner's host: it dials a remote palaverd's
// WebSocket event channel (--rescan-remote-url), replays the remote
// draft's audio through a local Transcriber/DraftMaker, and posts the
// result back to that same host's revision HTTP API (spec.md §4.11).
// It has no local DraftStore or HTTP surface of its own; it is purely a
// client of the capture host runCapture serves.
func runRescan(cfg config.PipelineConfig, logger logging.Logger) error {
	if cfg.RescanRemoteURL == "" {
		return fmt.Errorf("palaverd: --mode=rescan requires --rescan-remote-url")
	}

	sttModel, err := buildSTTModel(cfg)
	if err != nil {
		return err
	}
	baseURL, err := httpBaseFromWSURL(cfg.RescanRemoteURL)
	if err != nil {
		return err
	}

	downsampler := audio.NewDownSampler(cfg.TargetSampleRate)
	vadModel := vad.NewRMSVAD(cfg.VADThreshold, cfg.VADMinSilenceMS)
	vadParams := vad.Params{
		Threshold:    cfg.VADThreshold,
		MinSilenceMS: cfg.VADMinSilenceMS,
		SpeechPadMS:  cfg.VADSpeechPadMS,
		SamplingRate: cfg.TargetSampleRate,
	}
	filter := vad.NewFilter(vadModel, vadParams, logger)
	merge := events.NewMerge(filter)
	dispatch := command.New(cfg.CommandScore, cfg.AttentionScore, cfg.RequireAlerts, logger)
	mon := monitor.New()

	var rescanner *rescan.Rescanner
	onDraft := func(de events.DraftEvent) {
		if de.Kind != events.DraftEnd {
			return
		}
		if _, err := rescanner.OnLocalDraftEnd(context.Background(), de.Draft); err != nil {
			logger.Error("rescan: posting revision failed", "error", err)
		}
	}
	draftMaker := draft.New(onDraft, logger)

	onText := func(ev events.TextEvent) {
		mon.OnTextEvent(ev.AudioEndTime)
		draftMaker.OnTextEvent(ev)
		for _, cmdEv := range dispatch.OnTextEvent(ev) {
			switch cmdEv.Command {
			case events.CommandStartBlock:
				mon.OnStartBlock()
			case events.CommandStopBlock:
				mon.OnStopBlock()
			}
		}
	}

	var supHandler *supervisor.Handler
	onTranscriberError := func(err error) {
		supHandler.HandleError("transcriber", err)
	}
	trans := transcriber.New(sttModel, cfg.TranscriberQueueDepth, cfg.TranscriberBufCapacity, cfg.TranscriberDropOnFull, onText, onTranscriberError, logger)
	trans.Start()

	// onLifecycle is shared between Merge's own lifecycle subscription and
	// Rescanner's onLifecycle callback (used to release a held SpeechStop
	// once the rescan completes): by the time a held event is replayed
	// through it, BlocksLocalSpeechStop reports false again, so it falls
	// through to the normal handling below instead of being re-held.
	onLifecycle := func(ev audio.LifecycleEvent) {
		if ev.Kind == audio.LifecycleSpeechStop && rescanner.BlocksLocalSpeechStop() {
			rescanner.HoldLocalSpeechStop(ev)
			return
		}
		switch ev.Kind {
		case audio.LifecycleSpeechStop:
			trans.HandleSpeechStop()
		case audio.LifecycleStop:
			trans.HandleAudioStop()
			mon.OnAudioStop()
			draftMaker.ForceEnd()
		}
	}
	merge.SubscribeLifecycle(onLifecycle)
	merge.SubscribePostVAD(func(c audio.AudioChunk) {
		if c.InSpeech {
			trans.HandleChunk(c.SourceID, c.SampleRate, c.Timestamp, c.Data)
			mon.OnSpeechChunk(c.Timestamp)
		}
	})

	onChunk := func(c audio.AudioChunk) {
		downsampled, err := downsampler.Process(c)
		if err != nil {
			supHandler.HandleError("downsampler", err)
			return
		}
		if err := merge.HandleRawChunk(downsampled); err != nil {
			supHandler.HandleError("merge", err)
		}
	}

	poster := apiserver.NewHTTPPoster(baseURL)
	rescanner = rescan.New(uuid.New(), onChunk, onLifecycle, trans, draftMaker, poster, logger)
	rescanner.SetForceEndTimeout(cfg.RescanForceEndTimeout)
	rescanner.SetFlushTimeout(cfg.RescanFlushTimeout)

	shutdown := &processShutdown{}
	forcedShutdown := &processShutdown{forced: true}
	supHandler = supervisor.New(nil, shutdown, forcedShutdown, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	client := rescan.NewRemoteClient(cfg.RescanRemoteURL, rescanner, logger)
	supHandler.WrapTask(ctx, &wg, "rescan-client", func(ctx context.Context) error {
		logger.Info("rescanning against remote", "url", cfg.RescanRemoteURL)
		return client.Run(ctx)
	})

	<-ctx.Done()
	logger.Info("shutdown signal received")
	shutdown.Shutdown("interrupt")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}
	return nil
}
