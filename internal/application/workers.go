package application

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"thirdcoast.systems/scribe/internal/acquire"
	"thirdcoast.systems/scribe/internal/config"
	"thirdcoast.systems/scribe/internal/pipeline"
	"thirdcoast.systems/scribe/internal/queue"
	"thirdcoast.systems/scribe/internal/resolver"
	"thirdcoast.systems/scribe/internal/transcribe"
	"thirdcoast.systems/scribe/pkg/ytdlp"
)

// NewYtdlp returns a yt-dlp client throttled to YTDLP_REQUESTS_PER_MINUTE.
func NewYtdlp(conf config.Config) *ytdlp.Client {
	c := ytdlp.New()
	c.Path = conf.YtdlpPath
	c.CookiesFile = conf.YtdlpCookiesFile
	c.LogCallback = func(stream, line string) {
		slog.Debug("yt-dlp output", "stream", stream, "line", line)
	}
	if conf.YtdlpPerMinute > 0 {
		c.Limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(conf.YtdlpPerMinute)), 1)
	}
	return c
}

func NewRouter(conf config.Config, b *Backends, log *slog.Logger) *pipeline.Router {
	res := resolver.New(NewYtdlp(conf))
	res.Logger = log
	return &pipeline.Router{
		Store:    b.Units,
		Resolver: res,
		Queue:    b.Queue,
		Logger:   log,
	}
}

// NewProcessorConsumer wires the work topic to acquisition and segment fan-out.
func NewProcessorConsumer(conf config.Config, b *Backends, log *slog.Logger) *queue.Consumer {
	acq := acquire.New(NewYtdlp(conf), b.Artifacts, conf.SpoolDir, conf.SegmentDuration())
	acq.Logger = log

	p := &pipeline.Processor{
		Store:    b.Units,
		Acquirer: acq,
		Queue:    b.Queue,
		Batches:  &pipeline.BatchAggregator{Store: b.Units, Logger: log},
		Logger:   log,
	}
	return &queue.Consumer{
		Queue:        b.Queue,
		Topic:        queue.TopicWork,
		Handler:      p.HandleMessage,
		Workers:      conf.ProcessorWorkers,
		Visibility:   conf.QueueVisibility(),
		PollInterval: conf.QueuePollInterval(),
		RetryDelay:   conf.QueueRetryDelay(),
		Logger:       log,
	}
}

// NewIngestorConsumer wires the segments topic to transcription and result storage.
func NewIngestorConsumer(conf config.Config, b *Backends, log *slog.Logger) *queue.Consumer {
	w := &transcribe.Whisper{
		Path:      conf.WhisperPath,
		Model:     conf.WhisperModel,
		Language:  conf.WhisperLanguage,
		Threads:   conf.WhisperThreads,
		Timeout:   conf.WhisperTimeout(),
		Artifacts: b.Artifacts,
		WorkDir:   conf.SpoolDir,
		Logger:    log,
	}

	in := &pipeline.Ingestor{
		Store:       b.Units,
		Transcriber: w,
		Results:     b.Results,
		Batches:     &pipeline.BatchAggregator{Store: b.Units, Logger: log},
		Logger:      log,
	}
	return &queue.Consumer{
		Queue:        b.Queue,
		Topic:        queue.TopicSegments,
		Handler:      in.HandleMessage,
		Workers:      conf.IngestorWorkers,
		Visibility:   conf.QueueVisibility(),
		PollInterval: conf.QueuePollInterval(),
		RetryDelay:   conf.QueueRetryDelay(),
		Logger:       log,
	}
}
