package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/capture"
	"github.com/fleveque/ecosort/internal/llm"
	"github.com/fleveque/ecosort/internal/model"
)

// ErrClosed is returned by every operation on a closed session.
var ErrClosed = errors.New("session: closed")

// Classifier is what a session needs from the classification pipeline.
// *service.ClassificationService satisfies it.
type Classifier interface {
	Classify(ctx context.Context, img model.Image) (model.ClassificationResult, error)
}

// Stream is an acquired camera. *capture.Stream satisfies it.
type Stream interface {
	CaptureFrame(ctx context.Context) (model.Image, error)
	Facing() string
	Release()
}

// CameraFunc acquires a camera stream.
type CameraFunc func(ctx context.Context) (Stream, error)

// ProviderCamera adapts a capture.Provider. A nil provider means the process
// has no camera, and every request fails with capture.ErrCameraUnavailable.
func ProviderCamera(p *capture.Provider) CameraFunc {
	return func(ctx context.Context) (Stream, error) {
		if p == nil {
			return nil, fmt.Errorf("%w: camera disabled", capture.ErrCameraUnavailable)
		}
		// Return an untyped nil on error so callers never see a nil *capture.Stream
		// wrapped in a non-nil interface.
		s, err := p.RequestCameraStream(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// ErrorView is the user-facing form of the session error.
type ErrorView struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// View is an immutable snapshot of a session, safe to hand to other goroutines
// and to serialize.
type View struct {
	ID         string                      `json:"id"`
	State      State                       `json:"state"`
	Generation uint64                      `json:"generation"`
	Result     *model.ClassificationResult `json:"result,omitempty"`
	Error      *ErrorView                  `json:"error,omitempty"`
	Camera     string                      `json:"camera,omitempty"`
	HasImage   bool                        `json:"has_image"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// Session is one capture session: at most one camera stream and at most one
// classification in flight. All methods are safe for concurrent use.
type Session struct {
	id         string
	lang       string
	classifier Classifier
	camera     CameraFunc
	logger     *zap.Logger

	// ctx outlives individual requests: a classification started by an HTTP
	// call keeps running after that call returns. Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	m         Machine
	stream    Stream
	acquiring bool
	image     *model.Image
	updatedAt time.Time
	closed    bool
	subs      map[int]chan View
	nextSub   int
}

// New creates an idle session.
func New(id string, classifier Classifier, camera CameraFunc, lang string, logger *zap.Logger) *Session {
	if lang == "" {
		lang = DefaultLanguage
	}
	if camera == nil {
		camera = ProviderCamera(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         id,
		lang:       lang,
		classifier: classifier,
		camera:     camera,
		logger:     logger.With(zap.String("session", id)),
		ctx:        ctx,
		cancel:     cancel,
		m:          Machine{State: StateIdle},
		updatedAt:  time.Now(),
		subs:       make(map[int]chan View),
	}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) Language() string { return s.lang }

// StartCapture acquires the camera and moves Idle to Capturing. When no camera
// can be opened the session stays Idle and the error matches
// capture.ErrCameraUnavailable, so the caller can offer a file upload instead.
func (s *Session) StartCapture(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.acquiring || !Allowed(s.m.State, EventStartCapture) {
		state := s.m.State
		s.mu.Unlock()
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, EventStartCapture, state)
	}
	s.acquiring = true
	s.mu.Unlock()

	// Opening a device can block for a while; do it without holding the lock.
	stream, err := s.camera(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquiring = false

	if err != nil {
		s.logger.Info("camera unavailable", zap.Error(err))
		return err
	}
	if s.closed {
		stream.Release()
		return ErrClosed
	}

	next, err := Transition(s.m, Event{Type: EventStartCapture})
	if err != nil {
		// Something else (an upload) moved the session while the camera opened.
		stream.Release()
		return err
	}
	s.m = next
	s.stream = stream
	s.publishLocked()
	return nil
}

// CaptureFrame takes the still, releases the camera and starts classification.
// If the frame cannot be read the session stays Capturing so the user can try
// again or cancel.
func (s *Session) CaptureFrame(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.m.State != StateCapturing || s.stream == nil {
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, EventFrameCaptured, s.m.State)
	}

	img, err := s.stream.CaptureFrame(ctx)
	if err != nil {
		return err
	}

	s.releaseStreamLocked()

	next, err := Transition(s.m, Event{Type: EventFrameCaptured})
	if err != nil {
		return err
	}
	s.m = next
	s.image = &img
	s.dispatchLocked(img, next.Generation)
	s.publishLocked()
	return nil
}

// CancelCapture closes the camera and returns to Idle.
func (s *Session) CancelCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	next, err := Transition(s.m, Event{Type: EventCancel})
	if err != nil {
		return err
	}
	s.releaseStreamLocked()
	s.m = next
	s.publishLocked()
	return nil
}

// SelectFile starts classification of an uploaded image.
func (s *Session) SelectFile(img model.Image) error {
	if len(img.Data) == 0 {
		return fmt.Errorf("%w: empty image", capture.ErrReadFailure)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	next, err := Transition(s.m, Event{Type: EventFileSelected})
	if err != nil {
		return err
	}
	s.m = next
	s.image = &img
	s.dispatchLocked(img, next.Generation)
	s.publishLocked()
	return nil
}

// Reset returns to Idle from Result, Error or Loading. A classification still
// in flight is not cancelled; its outcome is discarded when it arrives.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	next, err := Transition(s.m, Event{Type: EventReset})
	if err != nil {
		return err
	}
	s.m = next
	s.image = nil
	s.publishLocked()
	return nil
}

// dispatchLocked runs the classification for generation gen in the background.
func (s *Session) dispatchLocked(img model.Image, gen uint64) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := s.classifier.Classify(s.ctx, img)
		s.complete(gen, result, err)
	}()
}

func (s *Session) complete(gen uint64, result model.ClassificationResult, callErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	ev := Event{Type: EventSucceeded, Generation: gen, Result: result}
	if callErr != nil {
		ev = Event{Type: EventFailed, Generation: gen, Err: callErr}
	}

	next, err := Transition(s.m, ev)
	if err != nil {
		// A reset (or a newer request) happened while this one was in flight.
		s.logger.Debug("discarding late classification", zap.Uint64("generation", gen), zap.Error(err))
		return
	}
	s.m = next
	s.publishLocked()
}

func (s *Session) releaseStreamLocked() {
	if s.stream != nil {
		s.stream.Release()
		s.stream = nil
	}
}

// Snapshot returns the current view.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Image returns the image of the current cycle, if any.
func (s *Session) Image() (model.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.image == nil {
		return model.Image{}, false
	}
	return *s.image, true
}

// UpdatedAt is the time of the last state change.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) viewLocked() View {
	v := View{
		ID:         s.id,
		State:      s.m.State,
		Generation: s.m.Generation,
		HasImage:   s.image != nil,
		UpdatedAt:  s.updatedAt,
	}
	if s.m.Result != nil {
		r := *s.m.Result
		v.Result = &r
	}
	if s.m.Err != nil {
		v.Error = &ErrorView{Kind: llm.ErrorKind(s.m.Err), Message: Message(s.m.Err, s.lang)}
	}
	if s.stream != nil {
		v.Camera = s.stream.Facing()
	}
	return v
}

// Subscribe returns a channel of views, starting with the current one. Slow
// readers only miss intermediate views; the latest one is always delivered.
// The channel is closed by the returned cancel func or when the session closes.
func (s *Session) Subscribe() (<-chan View, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan View, 4)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.viewLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Session) publishLocked() {
	s.updatedAt = time.Now()
	v := s.viewLocked()
	for _, ch := range s.subs {
		// Non-blocking send; when the buffer is full, drop the oldest view.
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Wait blocks until every classification started so far has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close releases the camera, cancels an in-flight classification and closes
// all subscriptions. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.releaseStreamLocked()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
