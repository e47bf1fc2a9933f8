package runner

import (
	"fmt"
	"os/exec"

	"github.com/keti-tsn/trafficd/internal/domain"
)

// GStreamer drives live video streaming over RTP/UDP. A stream has no
// natural end: it runs until stopped, so the run ceiling is disabled.
type GStreamer struct {
	*Core
	bin string
}

// NewGStreamer creates the video streaming runner.
func NewGStreamer(sink Sink) *GStreamer {
	t := &GStreamer{Core: newCore(domain.ToolVideo, sink), bin: "gst-launch-1.0"}
	t.SetRunTimeout(0)
	return t
}

// Available reports whether gst-launch-1.0 can be found.
func (t *GStreamer) Available() bool { return binAvailable(t.bin) }

// Start launches the streaming pipeline.
func (t *GStreamer) Start(p domain.VideoParams) error {
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return err
	}

	cmd := exec.Command(t.bin, t.buildPipeline(p)...)
	base := domain.Stats{
		"bitrate":    p.Bitrate,
		"fps":        p.Framerate,
		"resolution": p.Resolution,
	}
	start := map[string]any{
		"message":    fmt.Sprintf("video stream started to %s:%d", p.DestIP, p.DestPort),
		"dest_ip":    p.DestIP,
		"dest_port":  p.DestPort,
		"resolution": p.Resolution,
		"bitrate":    p.Bitrate,
	}
	return t.begin(cmd, base, start, t.finish)
}

func (t *GStreamer) buildPipeline(p domain.VideoParams) []string {
	width, height, _ := p.Dimensions() // validated in Start
	caps := fmt.Sprintf("video/x-raw,width=%d,height=%d,framerate=%d/1", width, height, p.Framerate)

	args := []string{"-v"}
	if p.UseWebcam {
		args = append(args, "v4l2src", "device="+p.Device, "!", caps)
	} else {
		args = append(args, "videotestsrc", "is-live=true", "!", caps)
	}
	args = append(args,
		"!", "videoconvert",
		"!", "x264enc", fmt.Sprintf("bitrate=%d", p.Bitrate), "tune=zerolatency", "speed-preset=ultrafast",
		"!", "rtph264pay",
		"!", "udpsink", "host="+p.DestIP, fmt.Sprintf("port=%d", p.DestPort),
	)
	return args
}

func (t *GStreamer) finish(stdout, stderr string, exitErr error) (domain.Stats, error) {
	if exitErr != nil {
		if stderr != "" {
			return nil, fmt.Errorf("%s", stderr)
		}
		return nil, fmt.Errorf("gstreamer exited: %v", exitErr)
	}
	return domain.Stats{}, nil
}
