// Package preview serves an MJPEG rendition of a video stream over HTTP so
// tuning changes can be eyeballed in a browser without an RTSP client.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/depthcast/depthcast/internal/logger"
	"github.com/depthcast/depthcast/internal/tonemap"
)

const boundary = "frame"

// MJPEG is a video sink that JPEG-encodes pushed BGRA frames and fans them
// out to connected HTTP clients. With no clients connected Push is a no-op,
// so the sink reports inactive and upstream pipelines can idle.
type MJPEG struct {
	width   int
	height  int
	quality int

	// params supplies the values drawn into the overlay; nil disables the
	// overlay.
	params func() tonemap.Params

	mu      sync.Mutex
	clients map[chan []byte]struct{}
	img     *image.RGBA
	buf     bytes.Buffer
}

// NewMJPEG creates a preview sink for frames of the given geometry. params
// may be nil.
func NewMJPEG(width, height int, params func() tonemap.Params) *MJPEG {
	return &MJPEG{
		width:   width,
		height:  height,
		quality: 80,
		params:  params,
		clients: map[chan []byte]struct{}{},
		img:     image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Active implements publish.VideoSink.
func (m *MJPEG) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients) > 0
}

// Push implements publish.VideoSink. data is tightly packed BGRA matching
// the sink's geometry.
func (m *MJPEG) Push(data []byte, ts time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.clients) == 0 {
		return nil
	}
	if want := m.width * m.height * 4; len(data) != want {
		return fmt.Errorf("preview frame is %d bytes, want %d", len(data), want)
	}

	// BGRA to RGBA is a red/blue swap.
	pix := m.img.Pix
	for i := 0; i < len(data); i += 4 {
		pix[i] = data[i+2]
		pix[i+1] = data[i+1]
		pix[i+2] = data[i]
		pix[i+3] = data[i+3]
	}

	if m.params != nil {
		p := m.params()
		m.drawLabel(fmt.Sprintf("min=%.2f max=%.2f scale=%.2f", p.OutputMin, p.OutputMax, p.SourceScale))
	}

	m.buf.Reset()
	if err := jpeg.Encode(&m.buf, m.img, &jpeg.Options{Quality: m.quality}); err != nil {
		return fmt.Errorf("encode preview frame: %w", err)
	}
	frame := append([]byte(nil), m.buf.Bytes()...)

	for ch := range m.clients {
		select {
		case ch <- frame:
		default:
			// Slow client keeps its previous frame.
		}
	}
	return nil
}

func (m *MJPEG) drawLabel(text string) {
	face := basicfont.Face7x13
	x, y := 8, 8+face.Ascent

	// Dark strip behind the text so it stays readable over bright frames.
	w := font.MeasureString(face, text).Ceil()
	for py := 4; py < 12+face.Height; py++ {
		for px := 4; px < x+w+4 && px < m.width; px++ {
			m.img.SetRGBA(px, py, color.RGBA{A: 0xff})
		}
	}

	d := font.Drawer{
		Dst:  m.img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func (m *MJPEG) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	m.mu.Lock()
	m.clients[ch] = struct{}{}
	n := len(m.clients)
	m.mu.Unlock()
	logger.WithComponent("preview").Info().Int("clients", n).Msg("Preview client connected")
	return ch
}

func (m *MJPEG) unsubscribe(ch chan []byte) {
	m.mu.Lock()
	delete(m.clients, ch)
	n := len(m.clients)
	m.mu.Unlock()
	logger.WithComponent("preview").Info().Int("clients", n).Msg("Preview client disconnected")
}

// StreamHandler serves the multipart MJPEG stream.
func (m *MJPEG) StreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch := m.subscribe()
		defer m.unsubscribe(ch)

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)

		flusher, _ := w.(http.Flusher)
		for {
			select {
			case <-r.Context().Done():
				return
			case frame := <-ch:
				if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(frame)); err != nil {
					return
				}
				if _, err := w.Write(frame); err != nil {
					return
				}
				if _, err := fmt.Fprint(w, "\r\n"); err != nil {
					return
				}
				if flusher != nil {
					flusher.Flush()
				}
			}
		}
	}
}
