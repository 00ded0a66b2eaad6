package scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vinscan/vinscan/internal/recognition"
	"github.com/vinscan/vinscan/internal/vin"
)

type blockingText struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingText) Recognize(ctx context.Context, img recognition.Image) (recognition.TextResult, error) {
	close(b.started)
	<-b.release
	return recognition.TextResult{Text: "VIN: 1HGCM82633A004352"}, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	frames    []Frame
	consensus []ConsensusResult
}

func (n *recordingNotifier) FrameAccepted(deviceID string, f Frame) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frames = append(n.frames, f)
}

func (n *recordingNotifier) ConsensusUpdated(deviceID string, c ConsensusResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.consensus = append(n.consensus, c)
}

type recordingArchiver struct {
	calls chan Frame
}

func (a *recordingArchiver) Archive(ctx context.Context, deviceID string, f Frame) error {
	a.calls <- f
	return nil
}

func testEngine(fake *recognition.Fake, flags FeatureFlagSet) *Engine {
	return NewEngine(EngineConfig{
		DeviceID: "cam-1",
		Flags:    flags,
		Text:     fake,
		Barcode:  fake,
		Quality:  fake,
	})
}

func TestEngineScanAcceptsFrame(t *testing.T) {
	fake := recognition.NewFake().WithText("VIN: 1HGCM82633AOO4352")
	eng := testEngine(fake, DefaultFlags())

	out := eng.Scan(context.Background(), recognition.Image{})
	if !out.Succeeded() {
		t.Fatalf("Status = %q, want ok", out.Status)
	}
	if out.Frame == nil {
		t.Fatal("expected an accepted frame")
	}
	if out.Frame.VIN != "1HGCM82633A004352" {
		t.Errorf("VIN = %q, want corrected 1HGCM82633A004352", out.Frame.VIN)
	}
	if v := vin.Validate(out.Frame.VIN); !v.Structural {
		t.Errorf("accepted VIN %q fails structural validation", out.Frame.VIN)
	}
	if out.Frame.ID == "" || out.SessionID == "" {
		t.Error("frame and session need identifiers")
	}
	if out.Review == nil {
		t.Error("context filtering on: expected a review")
	}
	if got := eng.Frames(); len(got) != 1 {
		t.Errorf("history = %d frames, want 1", len(got))
	}
}

func TestEngineRejectsConcurrentScan(t *testing.T) {
	text := &blockingText{started: make(chan struct{}), release: make(chan struct{})}
	fake := recognition.NewFake()
	eng := NewEngine(EngineConfig{
		DeviceID: "cam-1",
		Flags:    DefaultFlags(),
		Text:     text,
		Quality:  fake,
	})

	done := make(chan Outcome, 1)
	go func() {
		done <- eng.Scan(context.Background(), recognition.Image{})
	}()
	<-text.started

	busy := eng.Scan(context.Background(), recognition.Image{})
	if busy.Status != StatusBusy {
		t.Errorf("concurrent scan Status = %q, want busy", busy.Status)
	}

	close(text.release)
	first := <-done
	if !first.Succeeded() {
		t.Errorf("first scan Status = %q, want ok", first.Status)
	}
}

func TestEngineThrottlesInsideInterval(t *testing.T) {
	fake := recognition.NewFake().WithText("VIN: 1HGCM82633A004352")
	eng := testEngine(fake, DefaultFlags())

	if out := eng.Scan(context.Background(), recognition.Image{}); !out.Succeeded() {
		t.Fatalf("first scan Status = %q", out.Status)
	}

	out := eng.Scan(context.Background(), recognition.Image{})
	if out.Status != StatusThrottled {
		t.Fatalf("Status = %q, want throttled", out.Status)
	}
	if out.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", out.RetryAfter)
	}
	// A throttled request must not touch history.
	if got := eng.Frames(); len(got) != 1 {
		t.Errorf("history = %d frames, want 1", len(got))
	}
}

func TestEngineStatusTaxonomy(t *testing.T) {
	t.Run("no candidate", func(t *testing.T) {
		fake := recognition.NewFake().WithText("no vehicle markings here")
		out := testEngine(fake, DefaultFlags()).Scan(context.Background(), recognition.Image{})
		if out.Status != StatusNoCandidate {
			t.Errorf("Status = %q, want no_candidate", out.Status)
		}
	})
	t.Run("structural reject", func(t *testing.T) {
		fake := recognition.NewFake().WithBarcodes("1HGCM826ZZA004352")
		out := testEngine(fake, DefaultFlags()).Scan(context.Background(), recognition.Image{})
		if out.Status != StatusStructuralReject {
			t.Errorf("Status = %q, want structural_reject", out.Status)
		}
	})
	t.Run("unavailable", func(t *testing.T) {
		fake := recognition.NewFake().Unavailable()
		out := testEngine(fake, DefaultFlags()).Scan(context.Background(), recognition.Image{})
		if out.Status != StatusUnavailable {
			t.Errorf("Status = %q, want unavailable", out.Status)
		}
	})
	t.Run("timeout", func(t *testing.T) {
		fake := recognition.NewFake()
		eng := testEngine(fake, DefaultFlags())
		eng.ctrl.timeout = -time.Millisecond
		out := eng.Scan(context.Background(), recognition.Image{})
		if out.Status != StatusTimeout {
			t.Errorf("Status = %q, want timeout", out.Status)
		}
	})
}

func TestEngineConsensusAcrossScans(t *testing.T) {
	fake := recognition.NewFake().WithText("VIN: 1HGCM82633A004352")
	eng := testEngine(fake, DefaultFlags())

	// Bypass the interval gate between scans instead of sleeping.
	for i := 0; i < 2; i++ {
		out := eng.Scan(context.Background(), recognition.Image{})
		if !out.Succeeded() {
			t.Fatalf("scan %d Status = %q", i, out.Status)
		}
		eng.mu.Lock()
		eng.scheduler.state.LastScan = time.Time{}
		eng.mu.Unlock()
	}

	c, ok := eng.Consensus()
	if !ok {
		t.Fatal("two agreeing frames should produce a consensus")
	}
	if c.VIN != "1HGCM82633A004352" {
		t.Errorf("consensus VIN = %q", c.VIN)
	}
	if c.Stability != 1 {
		t.Errorf("Stability = %v, want 1 for unanimous frames", c.Stability)
	}
	if got := eng.Inconsistencies(); got != nil {
		t.Errorf("unanimous window reported conflicts: %v", got)
	}
}

func TestEngineInconsistenciesWithoutConsensus(t *testing.T) {
	fake := recognition.NewFake().WithText(
		"VIN: 1HGCM82633A004352",
		"VIN: 1HGCM82633A004353",
		"VIN: 1HGCM82633A004354",
	)
	eng := testEngine(fake, DefaultFlags())

	for i := 0; i < 3; i++ {
		out := eng.Scan(context.Background(), recognition.Image{})
		if !out.Succeeded() {
			t.Fatalf("scan %d Status = %q", i, out.Status)
		}
		eng.mu.Lock()
		eng.scheduler.state.LastScan = time.Time{}
		eng.mu.Unlock()
	}

	// Three distinct VINs: no group reaches two frames, so there is no
	// consensus. The window is maximally unstable, which is exactly when
	// per-position conflicts matter most.
	if _, ok := eng.Consensus(); ok {
		t.Fatal("three distinct VINs should not reach consensus")
	}
	conflicts := eng.Inconsistencies()
	if len(conflicts) == 0 {
		t.Fatal("divided window should report position conflicts")
	}
	if conflicts[0].Position != 16 {
		t.Errorf("conflict Position = %d, want 16", conflicts[0].Position)
	}
	if len(conflicts[0].Counts) != 3 {
		t.Errorf("conflict Counts = %v, want three values", conflicts[0].Counts)
	}
}

func TestEngineStateTransitions(t *testing.T) {
	text := &blockingText{started: make(chan struct{}), release: make(chan struct{})}
	fake := recognition.NewFake()
	eng := NewEngine(EngineConfig{
		DeviceID: "cam-1",
		Flags:    DefaultFlags(),
		Text:     text,
		Quality:  fake,
	})

	if got := eng.State(); got != StateIdle {
		t.Fatalf("State = %q, want idle before any scan", got)
	}

	done := make(chan Outcome, 1)
	go func() {
		done <- eng.Scan(context.Background(), recognition.Image{})
	}()
	<-text.started

	if got := eng.State(); got != StateAttempting {
		t.Errorf("State = %q, want attempting while recognition runs", got)
	}

	close(text.release)
	<-done
	if got := eng.State(); got != StateDone {
		t.Errorf("State = %q, want done after the session", got)
	}

	eng.Reset()
	if got := eng.State(); got != StateIdle {
		t.Errorf("State = %q, want idle after reset", got)
	}
}

func TestEngineFusionDisabledUsesLatestFrame(t *testing.T) {
	flags := DefaultFlags()
	flags.MultiFrameFusion = false
	fake := recognition.NewFake().WithText("VIN: 1HGCM82633A004352")
	eng := testEngine(fake, flags)

	out := eng.Scan(context.Background(), recognition.Image{})
	if !out.Succeeded() {
		t.Fatalf("Status = %q", out.Status)
	}
	if out.Consensus == nil {
		t.Fatal("fusion off should still report the latest frame as consensus")
	}
	if out.Consensus.Window != 1 || out.Consensus.Stability != 1 {
		t.Errorf("Window/Stability = %d/%v, want 1/1", out.Consensus.Window, out.Consensus.Stability)
	}
}

func TestEngineContextFilteringDisabledSkipsReview(t *testing.T) {
	flags := DefaultFlags()
	flags.ContextFiltering = false
	fake := recognition.NewFake().WithText("VIN: 1HGCM82633A004352")
	eng := testEngine(fake, flags)

	out := eng.Scan(context.Background(), recognition.Image{})
	if !out.Succeeded() {
		t.Fatalf("Status = %q", out.Status)
	}
	if out.Review != nil {
		t.Error("context filtering off: no review expected")
	}
}

func TestEngineSideEffects(t *testing.T) {
	notifier := &recordingNotifier{}
	archiver := &recordingArchiver{calls: make(chan Frame, 1)}
	fake := recognition.NewFake().WithText("VIN: 1HGCM82633A004352")
	eng := NewEngine(EngineConfig{
		DeviceID: "cam-1",
		Flags:    DefaultFlags(),
		Text:     fake,
		Barcode:  fake,
		Quality:  fake,
		Archiver: archiver,
		Notifier: notifier,
	})

	out := eng.Scan(context.Background(), recognition.Image{})
	if !out.Succeeded() {
		t.Fatalf("Status = %q", out.Status)
	}

	select {
	case archived := <-archiver.calls:
		if archived.VIN != "1HGCM82633A004352" {
			t.Errorf("archived VIN = %q", archived.VIN)
		}
	case <-time.After(time.Second):
		t.Fatal("frame never reached the archiver")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.frames) != 1 {
		t.Errorf("notified frames = %d, want 1", len(notifier.frames))
	}
}

func TestEngineResetClearsWindow(t *testing.T) {
	fake := recognition.NewFake().WithText("VIN: 1HGCM82633A004352")
	eng := testEngine(fake, DefaultFlags())

	if out := eng.Scan(context.Background(), recognition.Image{}); !out.Succeeded() {
		t.Fatalf("Status = %q", out.Status)
	}
	eng.Reset()
	if got := eng.Frames(); len(got) != 0 {
		t.Errorf("history after Reset = %d frames, want 0", len(got))
	}
}

func TestManagerReusesEnginePerDevice(t *testing.T) {
	m := NewManager(ManagerConfig{Flags: DefaultFlags()})

	a := m.Engine("cam-1")
	if b := m.Engine("cam-1"); a != b {
		t.Error("same device must map to the same engine")
	}
	if c := m.Engine("cam-2"); c == a {
		t.Error("different devices must not share an engine")
	}

	if got := m.Devices(); len(got) != 2 || got[0] != "cam-1" || got[1] != "cam-2" {
		t.Errorf("Devices = %v, want [cam-1 cam-2]", got)
	}

	m.Remove("cam-1")
	if _, ok := m.Peek("cam-1"); ok {
		t.Error("removed device should have no engine")
	}
	if _, ok := m.Peek("cam-2"); !ok {
		t.Error("cam-2 should survive cam-1 removal")
	}
}
