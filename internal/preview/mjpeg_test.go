package preview

import (
	"bytes"
	"context"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/depthcast/depthcast/internal/tonemap"
)

func grayFrame(width, height int, v byte) []byte {
	data := make([]byte, width*height*4)
	for i := 0; i < len(data); i += 4 {
		data[i] = v
		data[i+1] = v
		data[i+2] = v
		data[i+3] = 0xff
	}
	return data
}

func TestInactiveWithoutClients(t *testing.T) {
	m := NewMJPEG(32, 16, nil)
	if m.Active() {
		t.Error("Active = true with no clients")
	}
	// Pushing without clients is a cheap no-op, even for wrong-size data.
	if err := m.Push([]byte{1, 2, 3}, 0); err != nil {
		t.Errorf("Push without clients returned %v", err)
	}
}

func TestPushEncodesFrameForClients(t *testing.T) {
	m := NewMJPEG(64, 48, tonemap.DefaultParams)
	ch := m.subscribe()
	defer m.unsubscribe(ch)

	if !m.Active() {
		t.Fatal("Active = false with a client")
	}
	if err := m.Push(grayFrame(64, 48, 128), time.Second); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case frame := <-ch:
		img, err := jpeg.Decode(bytes.NewReader(frame))
		if err != nil {
			t.Fatalf("client did not receive a decodable JPEG: %v", err)
		}
		b := img.Bounds()
		if b.Dx() != 64 || b.Dy() != 48 {
			t.Errorf("decoded frame is %dx%d, want 64x48", b.Dx(), b.Dy())
		}
	default:
		t.Fatal("client received no frame")
	}
}

func TestPushRejectsWrongGeometry(t *testing.T) {
	m := NewMJPEG(64, 48, nil)
	ch := m.subscribe()
	defer m.unsubscribe(ch)

	if err := m.Push(grayFrame(32, 32, 0), 0); err == nil {
		t.Error("Push accepted a frame with the wrong geometry")
	}
}

func TestSlowClientKeepsPreviousFrame(t *testing.T) {
	m := NewMJPEG(16, 16, nil)
	ch := m.subscribe()
	defer m.unsubscribe(ch)

	if err := m.Push(grayFrame(16, 16, 10), 0); err != nil {
		t.Fatalf("Push: %v", err)
	}
	// The client has not drained its channel; the second frame is dropped
	// for it rather than blocking the broadcaster.
	if err := m.Push(grayFrame(16, 16, 200), 0); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(ch) != 1 {
		t.Errorf("client queue holds %d frames, want 1", len(ch))
	}
}

func TestStreamHandlerWritesMultipart(t *testing.T) {
	m := NewMJPEG(16, 16, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		m.StreamHandler()(rec, req)
		close(done)
	}()

	// Wait for the client to register, serve one frame, then disconnect.
	deadline := time.Now().Add(time.Second)
	for !m.Active() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !m.Active() {
		t.Fatal("handler never registered its client")
	}
	if err := m.Push(grayFrame(16, 16, 50), 0); err != nil {
		t.Fatalf("Push: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %q, want multipart/x-mixed-replace", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "--"+boundary) {
		t.Error("body missing multipart boundary")
	}
	if !strings.Contains(body, "Content-Type: image/jpeg") {
		t.Error("body missing JPEG part header")
	}
}
