package publish

import (
	"fmt"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/depthcast/depthcast/internal/logger"
)

// GstConfig describes one RTSP mount published through GStreamer.
type GstConfig struct {
	// Name tags log lines, e.g. "infrared" or "color".
	Name string

	// Location is the full RTSP URL to publish to, e.g.
	// rtsp://127.0.0.1:8554/infrared.
	Location string

	// Username and Password enable RTSP Basic Auth when both are set.
	Username string
	Password string

	Width        int
	Height       int
	FPS          int
	VideoBitrate int

	// WithAudio adds an S16LE audio branch muxed into the same mount.
	WithAudio    bool
	SampleRate   int
	AudioBitrate int
}

// GstPublisher pushes BGRA frames (and optionally S16LE audio) into a
// GStreamer pipeline that encodes to H.264/AAC and publishes over RTSP.
//
// Pipeline shape per mount:
//
//	appsrc ! queue ! videoconvert ! openh264enc ! h264parse ! rtspclientsink
//	appsrc ! queue ! audioconvert ! audioresample ! avenc_aac ! (same sink)
type GstPublisher struct {
	cfg GstConfig

	mu       sync.Mutex
	pipeline *gst.Pipeline
	videoSrc *app.Source
	audioSrc *app.Source
	running  bool
}

// requiredElements are probed before pipeline construction so a missing
// plugin fails with a readable error instead of a parse failure.
var requiredElements = []string{
	"appsrc", "queue", "videoconvert", "openh264enc", "h264parse", "rtspclientsink",
}

var requiredAudioElements = []string{
	"audioconvert", "audioresample", "avenc_aac",
}

// NewGstPublisher creates an unstarted publisher for cfg.
func NewGstPublisher(cfg GstConfig) *GstPublisher {
	return &GstPublisher{cfg: cfg}
}

func checkElements(names []string) error {
	for _, name := range names {
		e, err := gst.NewElement(name)
		if err != nil {
			return fmt.Errorf("missing GStreamer element %q (install the matching gst-plugins package): %w", name, err)
		}
		e.SetState(gst.StateNull)
	}
	return nil
}

// Start builds and starts the pipeline.
func (p *GstPublisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("publisher %s already running", p.cfg.Name)
	}

	log := logger.WithComponent("publish")

	gst.Init(nil)

	required := requiredElements
	if p.cfg.WithAudio {
		required = append(append([]string{}, required...), requiredAudioElements...)
	}
	if err := checkElements(required); err != nil {
		return err
	}

	videoBranch := fmt.Sprintf(
		"appsrc name=videosrc is-live=true format=time do-timestamp=true "+
			"caps=video/x-raw,format=BGRA,width=%d,height=%d,framerate=%d/1 "+
			"! queue leaky=downstream max-size-buffers=1 max-size-bytes=0 max-size-time=0 "+
			"! videoconvert ! video/x-raw,format=I420 "+
			"! openh264enc bitrate=%d gop-size=%d complexity=low "+
			"! h264parse config-interval=1 "+
			"! rtsink.sink_0 ",
		p.cfg.Width, p.cfg.Height, p.cfg.FPS, p.cfg.VideoBitrate, p.cfg.FPS,
	)

	audioBranch := ""
	if p.cfg.WithAudio {
		audioBranch = fmt.Sprintf(
			"appsrc name=audiosrc is-live=true format=time do-timestamp=true "+
				"caps=audio/x-raw,format=S16LE,layout=interleaved,rate=%d,channels=1 "+
				"! queue leaky=downstream max-size-buffers=4 max-size-bytes=0 max-size-time=0 "+
				"! audioconvert ! audioresample "+
				"! avenc_aac bitrate=%d "+
				"! rtsink.sink_1 ",
			p.cfg.SampleRate, p.cfg.AudioBitrate,
		)
	}

	pipelineStr := fmt.Sprintf("%s%srtspclientsink name=rtsink location=%s latency=0",
		videoBranch, audioBranch, p.cfg.Location)

	log.Debug().Str("mount", p.cfg.Name).Str("pipeline", pipelineStr).Msg("Creating publish pipeline")

	pipeline, err := gst.NewPipelineFromString(pipelineStr)
	if err != nil {
		return fmt.Errorf("create publish pipeline for %s: %w", p.cfg.Name, err)
	}

	if p.cfg.Username != "" && p.cfg.Password != "" {
		sink, err := pipeline.GetElementByName("rtsink")
		if err != nil {
			pipeline.Unref()
			return fmt.Errorf("get rtspclientsink: %w", err)
		}
		sink.SetProperty("user-id", p.cfg.Username)
		sink.SetProperty("user-pw", p.cfg.Password)
		log.Info().Str("mount", p.cfg.Name).Str("user", p.cfg.Username).Msg("RTSP Basic Auth enabled")
	}

	videoElem, err := pipeline.GetElementByName("videosrc")
	if err != nil {
		pipeline.Unref()
		return fmt.Errorf("get video appsrc: %w", err)
	}
	p.videoSrc = app.SrcFromElement(videoElem)

	if p.cfg.WithAudio {
		audioElem, err := pipeline.GetElementByName("audiosrc")
		if err != nil {
			pipeline.Unref()
			return fmt.Errorf("get audio appsrc: %w", err)
		}
		p.audioSrc = app.SrcFromElement(audioElem)
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.Unref()
		return fmt.Errorf("start publish pipeline for %s: %w", p.cfg.Name, err)
	}

	p.pipeline = pipeline
	p.running = true
	log.Info().Str("mount", p.cfg.Name).Str("location", p.cfg.Location).Msg("RTSP publisher started")
	return nil
}

// Stop tears the pipeline down.
func (p *GstPublisher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false
	p.videoSrc = nil
	p.audioSrc = nil
	if p.pipeline != nil {
		p.pipeline.SetState(gst.StateNull)
		p.pipeline.Unref()
		p.pipeline = nil
	}
	logger.WithComponent("publish").Info().Str("mount", p.cfg.Name).Msg("RTSP publisher stopped")
	return nil
}

// Push implements VideoSink. A flushing pipeline (e.g. during session
// teardown) swallows the frame; other flow errors propagate.
func (p *GstPublisher) Push(data []byte, ts time.Duration) error {
	p.mu.Lock()
	src := p.videoSrc
	p.mu.Unlock()

	if src == nil {
		return fmt.Errorf("publisher %s not running", p.cfg.Name)
	}
	return p.pushTo(src, data)
}

// PushSamples implements AudioSink.
func (p *GstPublisher) PushSamples(data []byte, ts time.Duration) error {
	p.mu.Lock()
	src := p.audioSrc
	p.mu.Unlock()

	if src == nil {
		return fmt.Errorf("publisher %s has no audio branch", p.cfg.Name)
	}
	return p.pushTo(src, data)
}

func (p *GstPublisher) pushTo(src *app.Source, data []byte) error {
	buffer := gst.NewBufferFromBytes(data)
	ret := src.PushBuffer(buffer)
	switch ret {
	case gst.FlowOK:
		return nil
	case gst.FlowFlushing:
		logger.WithComponent("publish").Debug().Str("mount", p.cfg.Name).Msg("Appsrc flushing, frame skipped")
		return nil
	default:
		return fmt.Errorf("push to %s appsrc: flow %v", p.cfg.Name, ret)
	}
}

// Active implements VideoSink. The RTSP server owns client fan-out, so
// the publisher is a consumer whenever its pipeline is up.
func (p *GstPublisher) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
