package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/signage-agent/internal/cache"
	"github.com/benmeehan/signage-agent/internal/classifier"
	"github.com/benmeehan/signage-agent/internal/constants"
	"github.com/benmeehan/signage-agent/internal/contentsource"
	"github.com/benmeehan/signage-agent/internal/materializer"
	"github.com/benmeehan/signage-agent/internal/models"
	"github.com/benmeehan/signage-agent/internal/state_managers"
	"github.com/benmeehan/signage-agent/pkg/clock"
	"github.com/benmeehan/signage-agent/pkg/identity"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Connectivity reports whether the device can reach the network.
type Connectivity interface {
	IsOnline() bool
	// Probe runs a reachability check now and returns the result.
	Probe(ctx context.Context) bool
}

// SyncConfig holds the scheduling parameters of the sync engine.
type SyncConfig struct {
	BaseInterval           time.Duration
	UnregisteredMultiplier int
	MinPollSpacing         time.Duration
}

// SyncService keeps the displayable content of one screen in step with the
// content source. All polls are serialized; at most one is in flight.
type SyncService struct {
	DeviceInfo   identity.DeviceInfoInterface
	Source       contentsource.ContentSource
	Cache        cache.ContentCacheInterface
	Materializer materializer.Materializer
	Connectivity Connectivity
	Markers      *state_managers.SyncMarkers
	Clock        clock.Clock
	Config       SyncConfig
	Logger       zerolog.Logger

	state    *state_managers.EngineStateStore
	inFlight *semaphore.Weighted
	limiter  *rate.Limiter
	trigger  chan struct{}

	mu             sync.Mutex
	deviceID       string
	screenCode     string
	registration   constants.RegistrationStatus
	pendingPersist bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncService initializes a new SyncService. connectivity, markers and clk may be nil.
func NewSyncService(deviceInfo identity.DeviceInfoInterface, source contentsource.ContentSource,
	contentCache cache.ContentCacheInterface, mat materializer.Materializer, connectivity Connectivity,
	markers *state_managers.SyncMarkers, state *state_managers.EngineStateStore, clk clock.Clock,
	config SyncConfig, logger zerolog.Logger) *SyncService {

	if clk == nil {
		clk = clock.Real()
	}
	if state == nil {
		state = state_managers.NewEngineStateStore()
	}
	if config.BaseInterval <= 0 {
		config.BaseInterval = constants.DefaultBaseInterval
	}
	if config.UnregisteredMultiplier < 1 {
		config.UnregisteredMultiplier = 1
	}
	if config.MinPollSpacing <= 0 {
		config.MinPollSpacing = constants.DefaultMinPollSpacing
	}

	return &SyncService{
		DeviceInfo:   deviceInfo,
		Source:       source,
		Cache:        contentCache,
		Materializer: mat,
		Connectivity: connectivity,
		Markers:      markers,
		Clock:        clk,
		Config:       config,
		Logger:       logger,
		state:        state,
		inFlight:     semaphore.NewWeighted(1),
		limiter:      rate.NewLimiter(rate.Every(config.MinPollSpacing), 1),
		trigger:      make(chan struct{}, 1),
		registration: constants.RegistrationUnknown,
	}
}

// Start bootstraps the screen identity and launches the polling loop.
func (s *SyncService) Start() error {
	if s.ctx != nil {
		s.Logger.Warn().Msg("SyncService is already running")
		return errors.New("sync service is already running")
	}

	if err := s.Bootstrap(); err != nil {
		return err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSyncLoop(s.ctx)
	}()

	s.Logger.Info().Str("screen_code", s.screenCode).Dur("base_interval", s.Config.BaseInterval).
		Msg("SyncService started successfully")
	return nil
}

// Stop cancels the pending poll and any in-flight call or materialization.
func (s *SyncService) Stop() error {
	if s.ctx == nil {
		s.Logger.Warn().Msg("SyncService is not running")
		return errors.New("sync service is not running")
	}

	s.cancel()
	s.wg.Wait()

	s.ctx = nil
	s.cancel = nil

	s.Logger.Info().Msg("SyncService stopped successfully")
	return nil
}

// Bootstrap loads or creates the identity, restores persisted markers and
// adopts any cached snapshot for immediate display.
func (s *SyncService) Bootstrap() error {
	deviceID, err := s.DeviceInfo.EnsureDeviceIdentity()
	if err == nil {
		var screenCode string
		screenCode, err = s.DeviceInfo.EnsureScreenCode()
		if err == nil {
			s.mu.Lock()
			s.deviceID = deviceID
			s.screenCode = screenCode
			s.mu.Unlock()
		}
	}
	if err != nil {
		s.state.Update(func(st *state_managers.EngineState) {
			st.Status = state_managers.Status{Message: fmt.Sprintf(constants.StatusInitFailedFormat, err)}
			st.LastError = err.Error()
		})
		s.Logger.Error().Err(err).Msg("Failed to bootstrap device identity")
		return fmt.Errorf("%w: %v", models.ErrBootstrap, err)
	}

	registration := constants.RegistrationUnknown
	var lastCheck time.Time
	if s.Markers != nil {
		if status, err := s.Markers.LoadRegistration(); err == nil {
			registration = status
		}
		if t, ok, err := s.Markers.LoadLastCheck(); err == nil && ok {
			lastCheck = t
		}
	}
	s.mu.Lock()
	s.registration = registration
	s.mu.Unlock()

	cached, ok, err := s.Cache.Load(deviceID)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("Ignoring unreadable cached content")
		ok = false
	}

	s.state.Update(func(st *state_managers.EngineState) {
		st.SyncState = constants.SyncStateIdle
		st.DeviceID = deviceID
		st.ScreenCode = s.screenCode
		st.Registration = registration
		st.LastCheck = lastCheck
		if ok && len(cached) > 0 {
			st.Displayable = cached
			st.Status = state_managers.Status{Message: constants.MessageContentAvailable}
		} else {
			st.Status = state_managers.Status{Message: constants.StatusChecking, IsLoading: true}
		}
	})

	s.Logger.Info().Str("device_id", deviceID).Str("screen_code", s.screenCode).
		Str("registration", string(registration)).Int("cached_items", len(cached)).Msg("Screen identity bootstrapped")
	return nil
}

// TriggerPoll requests an immediate poll. It never blocks; the poll is still
// subject to single-flight and spacing rules.
func (s *SyncService) TriggerPoll() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// State returns the current engine state.
func (s *SyncService) State() state_managers.EngineState {
	return s.state.Get()
}

// Subscribe streams engine state changes.
func (s *SyncService) Subscribe() (<-chan state_managers.EngineState, func()) {
	return s.state.Subscribe()
}

// Registration returns the last observed registration status.
func (s *SyncService) Registration() constants.RegistrationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registration
}

// NextInterval is the delay before the next scheduled poll.
func (s *SyncService) NextInterval() time.Duration {
	if s.Registration() == constants.RegistrationNotRegistered {
		return s.Config.BaseInterval * time.Duration(s.Config.UnregisteredMultiplier)
	}
	return s.Config.BaseInterval
}

// Poll runs one poll cycle unless another is in flight or the last one started
// less than the minimum spacing ago. It reports whether the cycle ran.
func (s *SyncService) Poll(ctx context.Context) bool {
	ran, _ := s.tick(ctx)
	return ran
}

func (s *SyncService) runSyncLoop(ctx context.Context) {
	timer := s.Clock.NewTimer(0)
	defer func() { timer.Stop() }()

	for {
		triggered := false
		select {
		case <-ctx.Done():
			s.Logger.Info().Msg("SyncService stopping gracefully")
			return
		case <-timer.C:
		case <-s.trigger:
			triggered = true
		}

		ran, next := s.tick(ctx)
		if !ran && triggered {
			// Keep the current schedule.
			continue
		}
		if ctx.Err() != nil {
			return
		}

		timer.Stop()
		timer = s.Clock.NewTimer(next)
		nextPollAt := s.Clock.Now().Add(next)
		s.state.Update(func(st *state_managers.EngineState) { st.NextPollAt = nextPollAt })
	}
}

// tick applies the single-flight gate and the spacing limiter, then polls.
func (s *SyncService) tick(ctx context.Context) (bool, time.Duration) {
	if !s.inFlight.TryAcquire(1) {
		s.Logger.Debug().Msg("Poll already in flight, tick suppressed")
		return false, s.NextInterval()
	}
	defer s.inFlight.Release(1)

	if !s.limiter.AllowN(s.Clock.Now(), 1) {
		s.Logger.Debug().Dur("min_spacing", s.Config.MinPollSpacing).Msg("Tick within minimum poll spacing, suppressed")
		return false, s.NextInterval()
	}

	return true, s.poll(ctx)
}

// poll runs one cycle and returns the delay until the next one.
func (s *SyncService) poll(ctx context.Context) time.Duration {
	logger := s.Logger.With().Str("cycle_id", uuid.NewString()).Logger()

	s.mu.Lock()
	deviceID, screenCode := s.deviceID, s.screenCode
	s.mu.Unlock()

	if screenCode == "" {
		logger.Warn().Msg("No screen code, skipping poll")
		return s.Config.BaseInterval
	}

	if !s.isOnline(ctx) {
		logger.Info().Msg("Device is offline, skipping poll")
		s.state.Update(func(st *state_managers.EngineState) {
			st.Online = false
			if len(st.Displayable) == 0 {
				st.Status = state_managers.Status{Message: constants.StatusOffline}
			}
		})
		return s.Config.BaseInterval
	}

	s.state.Update(func(st *state_managers.EngineState) {
		st.SyncState = constants.SyncStatePolling
		st.Online = true
		if len(st.Displayable) == 0 {
			st.Status.Message = constants.StatusChecking
		}
	})

	raw, err := s.Source.CheckScreen(ctx, screenCode)
	if ctx.Err() != nil {
		logger.Debug().Msg("Poll abandoned, discarding result")
		return s.Config.BaseInterval
	}
	if err != nil {
		s.handleTransportFailure(logger, err)
		return s.Config.BaseInterval
	}

	outcome := classifier.Classify(raw)
	logger.Info().Str("outcome", outcome.Kind.String()).Int("items", len(outcome.Items)).Msg("Screen check classified")

	next := s.apply(ctx, logger, deviceID, screenCode, outcome)
	if ctx.Err() != nil {
		return s.Config.BaseInterval
	}

	checkedAt := s.Clock.Now()
	s.state.Update(func(st *state_managers.EngineState) { st.LastCheck = checkedAt })
	if s.Markers != nil {
		if err := s.Markers.Save(s.Registration(), checkedAt); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist sync markers")
		}
	}
	return next
}

func (s *SyncService) isOnline(ctx context.Context) bool {
	if s.Connectivity == nil || s.Connectivity.IsOnline() {
		return true
	}
	return s.Connectivity.Probe(ctx)
}

func (s *SyncService) apply(ctx context.Context, logger zerolog.Logger, deviceID, screenCode string, outcome classifier.Outcome) time.Duration {
	switch outcome.Kind {
	case classifier.ContentAvailable:
		s.setRegistration(constants.RegistrationRegistered)
		s.handleContent(ctx, logger, deviceID, outcome)
		return s.Config.BaseInterval

	case classifier.NotRegistered:
		s.setRegistration(constants.RegistrationNotRegistered)
		s.clearContent(logger, deviceID, constants.SyncStateIdle,
			fmt.Sprintf(constants.StatusRegisterScreenFormat, screenCode))
		return s.NextInterval()

	case classifier.NoPlaylist, classifier.NoContentAvailable:
		s.setRegistration(constants.RegistrationRegistered)
		s.clearContent(logger, deviceID, constants.SyncStateIdle,
			fmt.Sprintf(constants.StatusAddContentFormat, outcome.Message, screenCode))
		return s.Config.BaseInterval

	case classifier.Unchanged:
		s.handleUnchanged(logger, deviceID, outcome.Message)
		return s.NextInterval()

	default:
		logger.Warn().Err(models.ErrClassificationAmbiguous).Str("message", outcome.Message).
			Msg("Unrecognized screen check response")
		s.state.Update(func(st *state_managers.EngineState) {
			st.SyncState = constants.SyncStateIdle
			st.Status.IsLoading = false
			st.LastError = outcome.Message
			if len(st.Displayable) == 0 {
				st.Status.Message = outcome.Message
			}
		})
		return s.Config.BaseInterval
	}
}

func (s *SyncService) handleContent(ctx context.Context, logger zerolog.Logger, deviceID string, outcome classifier.Outcome) {
	items := outcome.Items
	current := s.state.Get().Displayable

	if s.isPendingPersist() && current.Equal(items) {
		s.persist(logger, deviceID, items)
		s.setReady(current, outcome.Message)
		return
	}

	cached, ok, err := s.Cache.Load(deviceID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read cached content, treating as changed")
	}
	if err == nil && ok && cached.Equal(items) {
		s.mu.Lock()
		s.pendingPersist = false
		s.mu.Unlock()
		logger.Debug().Msg("Content unchanged, skipping cache write")
		s.setReady(cached, outcome.Message)
		return
	}

	total := len(items)
	s.state.Update(func(st *state_managers.EngineState) {
		st.SyncState = constants.SyncStateMaterializing
		st.Status.Message = fmt.Sprintf(constants.StatusProgressFormat, 0, total)
		st.Status.DownloadProgress = 0
	})

	snapshot, err := s.Materializer.Materialize(ctx, items, func(completed, total int) {
		s.state.Update(func(st *state_managers.EngineState) {
			st.Status.Message = fmt.Sprintf(constants.StatusProgressFormat, completed, total)
			st.Status.DownloadProgress = completed * 100 / total
		})
	})
	if ctx.Err() != nil {
		logger.Debug().Msg("Materialization abandoned, discarding candidate")
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to process content")
		s.state.Update(func(st *state_managers.EngineState) {
			st.SyncState = constants.SyncStateDegraded
			st.LastError = err.Error()
			if len(st.Displayable) == 0 {
				st.Status = state_managers.Status{Message: fmt.Sprintf(constants.StatusProcessFailedFormat, err)}
			} else {
				st.Status = state_managers.Status{Message: constants.MessageContentAvailable}
			}
		})
		return
	}

	s.persist(logger, deviceID, snapshot)
	s.setReady(snapshot, outcome.Message)
	logger.Info().Int("items", len(snapshot)).Msg("New content accepted")
}

// persist stores snapshot; on failure the snapshot is kept in memory and the
// write is retried on the next poll that returns the same content.
func (s *SyncService) persist(logger zerolog.Logger, deviceID string, snapshot models.Snapshot) {
	err := s.Cache.Store(snapshot, deviceID)

	s.mu.Lock()
	s.pendingPersist = err != nil
	s.mu.Unlock()

	if err != nil {
		logger.Error().Err(err).Msg("Failed to cache content, will retry on next poll")
		s.state.Update(func(st *state_managers.EngineState) { st.LastError = err.Error() })
	}
}

func (s *SyncService) setReady(snapshot models.Snapshot, message string) {
	pending := s.isPendingPersist()
	s.state.Update(func(st *state_managers.EngineState) {
		st.SyncState = constants.SyncStateReady
		st.Registration = constants.RegistrationRegistered
		st.Displayable = snapshot
		st.Status = state_managers.Status{Message: message, DownloadProgress: 100}
		if !pending {
			st.LastError = ""
		}
	})
}

func (s *SyncService) clearContent(logger zerolog.Logger, deviceID string, next constants.SyncState, message string) {
	if err := s.Cache.Clear(deviceID); err != nil {
		logger.Error().Err(err).Msg("Failed to clear cached content")
	}

	s.mu.Lock()
	s.pendingPersist = false
	registration := s.registration
	s.mu.Unlock()

	s.state.Update(func(st *state_managers.EngineState) {
		st.SyncState = next
		st.Registration = registration
		st.Displayable = models.Snapshot{}
		st.Status = state_managers.Status{Message: message}
		st.LastError = ""
	})
}

func (s *SyncService) handleUnchanged(logger zerolog.Logger, deviceID, message string) {
	var adopt models.Snapshot
	if len(s.state.Get().Displayable) == 0 {
		cached, ok, err := s.Cache.Load(deviceID)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to read cached content")
		} else if ok && len(cached) > 0 {
			adopt = cached
			logger.Debug().Int("items", len(cached)).Msg("Re-adopted cached content")
		}
	}

	s.state.Update(func(st *state_managers.EngineState) {
		st.SyncState = constants.SyncStateIdle
		st.Status.IsLoading = false
		if adopt != nil {
			st.Displayable = adopt
		}
		if len(st.Displayable) > 0 {
			st.Status.Message = constants.MessageContentAvailable
		} else {
			st.Status.Message = message
		}
	})
}

func (s *SyncService) handleTransportFailure(logger zerolog.Logger, err error) {
	logger.Error().Err(err).Msg("Failed to fetch content")
	s.state.Update(func(st *state_managers.EngineState) {
		st.SyncState = constants.SyncStateDegraded
		st.LastError = err.Error()
		if len(st.Displayable) == 0 {
			st.Status = state_managers.Status{Message: fmt.Sprintf(constants.StatusFetchFailedFormat, err)}
		}
	})
}

func (s *SyncService) setRegistration(status constants.RegistrationStatus) {
	s.mu.Lock()
	previous := s.registration
	s.registration = status
	s.mu.Unlock()

	if previous != status {
		s.Logger.Info().Str("from", string(previous)).Str("to", string(status)).Msg("Registration status changed")
	}
	s.state.Update(func(st *state_managers.EngineState) { st.Registration = status })
}

func (s *SyncService) isPendingPersist() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingPersist
}
