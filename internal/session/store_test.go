package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/capture"
	"github.com/fleveque/ecosort/internal/model"
)

func newTestStore(stream *fakeStream) *Store {
	return NewStore(func(id string) *Session {
		return New(id, &gatedClassifier{result: bottle}, cameraReturning(stream), "en", zap.NewNop())
	}, zap.NewNop())
}

func TestStore_CreateGetDelete(t *testing.T) {
	st := newTestStore(&fakeStream{})
	defer st.Close()

	s := st.Create()
	if s.ID() == "" {
		t.Fatal("expected a generated id")
	}

	got, err := st.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("expected to find session, got %v", err)
	}

	if err := st.Delete(s.ID()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Get(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := st.Delete(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStore_CloseReleasesCameras(t *testing.T) {
	stream := &fakeStream{}
	st := newTestStore(stream)

	s := st.Create()
	if err := s.StartCapture(context.Background()); err != nil {
		t.Fatalf("start capture: %v", err)
	}

	st.Close()
	if stream.released != 1 {
		t.Errorf("expected camera released on shutdown, got %d", stream.released)
	}
	if st.Len() != 0 {
		t.Errorf("expected empty store, got %d", st.Len())
	}
}

func TestStore_GetOrCreate(t *testing.T) {
	st := newTestStore(&fakeStream{})
	defer st.Close()

	a := st.GetOrCreate("chat-42")
	b := st.GetOrCreate("chat-42")
	if a != b {
		t.Error("expected the same session for the same id")
	}
	if a.Language() != "en" {
		t.Errorf("expected factory language, got %s", a.Language())
	}
}

func TestStore_Sweep(t *testing.T) {
	st := newTestStore(&fakeStream{})
	defer st.Close()

	st.Create()
	st.Create()

	if n := st.Sweep(time.Hour); n != 0 {
		t.Errorf("fresh sessions must survive, swept %d", n)
	}
	if n := st.Sweep(-time.Second); n != 2 {
		t.Errorf("expected 2 swept, got %d", n)
	}
}

// stuckStream blocks CaptureFrame until unblock is closed, like a camera that
// stopped delivering frames.
type stuckStream struct {
	entered chan struct{}
	unblock chan struct{}
}

func (f *stuckStream) CaptureFrame(ctx context.Context) (model.Image, error) {
	close(f.entered)
	<-f.unblock
	return model.Image{Data: photo.Data, MIMEType: "image/jpeg"}, nil
}
func (f *stuckStream) Facing() string { return capture.FacingRear }
func (f *stuckStream) Release()       {}

func TestStore_SweepDoesNotBlockOnBusySession(t *testing.T) {
	stream := &stuckStream{entered: make(chan struct{}), unblock: make(chan struct{})}
	st := NewStore(func(id string) *Session {
		return New(id, &gatedClassifier{result: bottle}, func(ctx context.Context) (Stream, error) {
			return stream, nil
		}, "en", zap.NewNop())
	}, zap.NewNop())
	defer st.Close()

	busy := st.Create()
	if err := busy.StartCapture(context.Background()); err != nil {
		t.Fatalf("start capture: %v", err)
	}
	go busy.CaptureFrame(context.Background())
	<-stream.entered

	swept := make(chan int, 1)
	go func() { swept <- st.Sweep(-time.Second) }()

	// The store must keep serving while the sweep waits on the busy session.
	done := make(chan struct{})
	go func() {
		defer close(done)
		other := st.Create()
		if _, err := st.Get(other.ID()); err != nil {
			t.Errorf("get: %v", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("store blocked behind a session held by a camera read")
	}

	close(stream.unblock)
	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not finish after the camera returned")
	}
	busy.Wait()
}
