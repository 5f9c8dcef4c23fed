package rtcclient

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/mockmate/mockmate-api/models"
)

// ErrMediaUnavailable reports that local camera/microphone acquisition
// failed. Non-fatal: the participant continues audio/video-less.
var ErrMediaUnavailable = errors.New("local media unavailable")

// DefaultWebRTCConfig returns the peer connection configuration used when
// the caller does not supply one.
func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// PeerController owns exactly one peer connection for one participant. It
// translates between signaling payloads and the underlying connection, and
// buffers remote ICE candidates that arrive before a remote description has
// been applied; applying a candidate first is an error in the underlying
// stack, and candidates routinely beat the SDP exchange.
//
// Outbound candidates are reported through the callback given at
// construction, keeping the controller decoupled from the transport.
type PeerController struct {
	mu sync.Mutex

	cfg         webrtc.Configuration
	pc          *webrtc.PeerConnection
	onCandidate func(models.ICECandidate)
	onTrack     func(*webrtc.TrackRemote, *webrtc.RTPReceiver)

	localAudio *webrtc.TrackLocalStaticSample
	localVideo *webrtc.TrackLocalStaticSample
	micEnabled bool
	camEnabled bool

	remoteSet bool
	pending   []models.ICECandidate
}

// NewPeerController builds a controller and its initial peer connection.
// onCandidate receives every locally discovered ICE candidate; onTrack may
// be nil.
func NewPeerController(cfg webrtc.Configuration, onCandidate func(models.ICECandidate), onTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) (*PeerController, error) {
	c := &PeerController{
		cfg:         cfg,
		onCandidate: onCandidate,
		onTrack:     onTrack,
	}
	pc, err := c.buildPeerConnection()
	if err != nil {
		return nil, err
	}
	c.pc = pc
	return c, nil
}

func (c *PeerController) buildPeerConnection() (*webrtc.PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(c.cfg)
	if err != nil {
		return nil, err
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil || c.onCandidate == nil {
			return
		}
		init := cand.ToJSON()
		c.onCandidate(models.ICECandidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		zap.S().Debugw("remote track", "kind", track.Kind().String(), "id", track.ID())
		if c.onTrack != nil {
			c.onTrack(track, receiver)
		}
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		zap.S().Debugw("ice state", "state", s.String())
	})

	return pc, nil
}

// InitLocalMedia acquires the local audio and video tracks and attaches them
// to the peer connection. Idempotent; a failure is reported as
// ErrMediaUnavailable and leaves the controller usable without local media.
func (c *PeerController) InitLocalMedia() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.localAudio != nil {
		return nil
	}

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "mockmate")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "mockmate")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}

	audioSender, err := c.pc.AddTrack(audio)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}
	if _, err := c.pc.AddTrack(video); err != nil {
		// roll the audio track back so a retry does not attach it twice
		if rmErr := c.pc.RemoveTrack(audioSender); rmErr != nil {
			zap.S().Warnw("audio track rollback failed", "error", rmErr)
		}
		return fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}

	c.localAudio = audio
	c.localVideo = video
	c.micEnabled = true
	c.camEnabled = true
	return nil
}

// CreateOffer produces the local session description for the initiator. The
// orchestrator guards against calling it twice within one negotiation
// episode.
func (c *PeerController) CreateOffer() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	return offer.SDP, nil
}

// HandleOffer applies the remote offer, drains any buffered candidates and
// returns the local answer description.
func (c *PeerController) HandleOffer(sdp string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer, SDP: sdp,
	}); err != nil {
		return "", err
	}
	c.remoteSet = true
	c.drainPendingLocked()

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return answer.SDP, nil
}

// HandleAnswer applies the remote answer on the initiator's side and drains
// any buffered candidates.
func (c *PeerController) HandleAnswer(sdp string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer, SDP: sdp,
	}); err != nil {
		return err
	}
	c.remoteSet = true
	c.drainPendingLocked()
	return nil
}

// HandleCandidate applies a remote candidate, or buffers it when no remote
// description has been applied yet. Buffered candidates are applied FIFO.
func (c *PeerController) HandleCandidate(cand models.ICECandidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.remoteSet {
		c.pending = append(c.pending, cand)
		return nil
	}
	return c.pc.AddICECandidate(candidateInit(cand))
}

func (c *PeerController) drainPendingLocked() {
	for _, cand := range c.pending {
		if err := c.pc.AddICECandidate(candidateInit(cand)); err != nil {
			zap.S().Warnw("buffered candidate rejected", "error", err)
		}
	}
	c.pending = nil
}

// ToggleMic flips the microphone enabled flag and returns the new value.
// No renegotiation happens; the sample writer consults the flag.
func (c *PeerController) ToggleMic() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.micEnabled = !c.micEnabled
	return c.micEnabled
}

// ToggleCamera flips the camera enabled flag and returns the new value.
func (c *PeerController) ToggleCamera() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camEnabled = !c.camEnabled
	return c.camEnabled
}

// MicEnabled reports the microphone flag.
func (c *PeerController) MicEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.micEnabled
}

// CameraEnabled reports the camera flag.
func (c *PeerController) CameraEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.camEnabled
}

// Reset tears the peer connection down and builds a fresh one while keeping
// the local media tracks alive, so a participant can renegotiate with a
// returning partner without re-acquiring camera and microphone.
func (c *PeerController) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.pc.Close(); err != nil {
		zap.S().Warnw("closing stale peer connection", "error", err)
	}

	pc, err := c.buildPeerConnection()
	if err != nil {
		return err
	}
	c.pc = pc
	c.remoteSet = false
	c.pending = nil

	if c.localAudio != nil {
		if _, err := c.pc.AddTrack(c.localAudio); err != nil {
			return err
		}
	}
	if c.localVideo != nil {
		if _, err := c.pc.AddTrack(c.localVideo); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the peer connection and the local media.
func (c *PeerController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.localAudio = nil
	c.localVideo = nil
	c.pending = nil
	c.remoteSet = false
	return c.pc.Close()
}

func candidateInit(cand models.ICECandidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
	}
}
