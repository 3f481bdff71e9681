// Package memsession owns the lifecycle of a single open memory graph: the
// file it's backed by, its dirty/clean state, auto-save policy, session
// IDs, and the transaction boundary around batched writes. It is the one
// place in the server that holds the graph's lock across IO.
package memsession

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/amem-mcp/amem-mcp/internal/graphengine"
	"github.com/amem-mcp/amem-mcp/internal/logging"
)

// DefaultAutoSaveInterval is how often MaybeAutoSave persists a dirty
// graph when driven by a background ticker.
const DefaultAutoSaveInterval = 30 * time.Second

// Session is the open, mutable handle on one memory file. Every
// graph-touching handler in internal/registry takes a *Session and holds
// its lock for the duration of the call, including the IO of any save that
// call triggers.
type Session struct {
	mu sync.Mutex

	graph *graphengine.Graph
	write *graphengine.WriteEngine

	filePath string
	dimension int

	currentSession   uint32
	nextSessionID    uint32
	dirty            bool
	lastSave         time.Time
	autoSaveInterval time.Duration

	stopAutoSave chan struct{}
	autoSaveWG   sync.WaitGroup
}

// Open loads the graph at path, creating an empty one if the file doesn't
// exist yet. dimension is only used for a freshly created graph; an
// existing file's dimension comes from its own encoded image.
func Open(path string, dimension int) (*Session, error) {
	s := &Session{
		filePath:         path,
		dimension:        dimension,
		autoSaveInterval: DefaultAutoSaveInterval,
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		g, decodeErr := graphengine.Decode(data)
		if decodeErr != nil {
			return nil, fmt.Errorf("memsession: open %s: %w", path, decodeErr)
		}
		s.graph = g
	case os.IsNotExist(err):
		s.graph = graphengine.New(dimension)
	default:
		return nil, fmt.Errorf("memsession: open %s: %w", path, err)
	}

	s.write = graphengine.NewWriteEngine(s.graph.Dimension())
	s.lastSave = time.Now()

	var maxExisting uint32
	if ids := s.graph.SessionIDs(); len(ids) > 0 {
		maxExisting = ids[len(ids)-1]
	}
	s.nextSessionID = maxExisting + 1
	s.currentSession = s.nextSessionID

	return s, nil
}

// Graph returns the underlying graph for read-only query operations.
// Callers must hold no expectation of exclusivity beyond the call that
// retrieved it; registries call this from inside a locked handler.
func (s *Session) Graph() *graphengine.Graph { return s.graph }

// FilePath returns the backing file path the session saves to.
func (s *Session) FilePath() string { return s.filePath }

// CurrentSessionID returns the session id currently in effect: the one
// Open assigned from the backing file's existing nodes, or the one
// StartSession last allocated, or zero after EndSessionWithEpisode.
func (s *Session) CurrentSessionID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSession
}

// StartSession allocates a new session id and makes it current.
func (s *Session) StartSession() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSessionID++
	s.currentSession = s.nextSessionID
	return s.currentSession
}

// AddEvent ingests a single event (and any edges referencing it or
// existing nodes) against the currently open session, marking the graph
// dirty.
func (s *Session) AddEvent(ctx context.Context, event graphengine.NewEvent, edges []graphengine.NewEdge) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.SessionID == 0 {
		event.SessionID = s.currentSession
	}

	result, err := s.write.Ingest(s.graph, []graphengine.NewEvent{event}, edges)
	if err != nil {
		return 0, err
	}
	s.dirty = true
	return result.NewNodeIDs[0], nil
}

// EdgeSpec describes one edge to attach to a node about to be created by
// AddEventWithEdges, relative to that not-yet-existing node.
type EdgeSpec struct {
	TargetID uint64
	EdgeType graphengine.EdgeType
	Weight   float32
	Outgoing bool // true: new node is the edge source; false: new node is the target
}

// AddEventWithEdges ingests one event together with edges that reference
// the node it creates, resolving the new node's id before building the
// edge list so callers (memory_add) never need a separate round trip.
func (s *Session) AddEventWithEdges(ctx context.Context, event graphengine.NewEvent, specs []EdgeSpec) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.SessionID == 0 {
		event.SessionID = s.currentSession
	}

	newID := s.graph.NextID() + 1
	edges := make([]graphengine.NewEdge, 0, len(specs))
	for _, spec := range specs {
		src, dst := spec.TargetID, newID
		if spec.Outgoing {
			src, dst = newID, spec.TargetID
		}
		weight := spec.Weight
		if weight == 0 {
			weight = 1.0
		}
		edges = append(edges, graphengine.NewEdge{SourceID: src, TargetID: dst, EdgeType: spec.EdgeType, Weight: weight})
	}

	result, err := s.write.Ingest(s.graph, []graphengine.NewEvent{event}, edges)
	if err != nil {
		return 0, err
	}
	s.dirty = true
	return result.NewNodeIDs[0], nil
}

// Correct writes a correction node superseding oldNodeID.
func (s *Session) Correct(ctx context.Context, oldNodeID uint64, newContent string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newID, err := s.write.Correct(s.graph, oldNodeID, newContent, s.currentSession)
	if err != nil {
		return 0, err
	}
	s.dirty = true
	return newID, nil
}

// EndSessionWithEpisode compresses the current session's nodes into an
// episode node carrying summary, forces a synchronous save, and clears
// the current session id.
func (s *Session) EndSessionWithEpisode(ctx context.Context, summary string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	episodeID, err := s.write.CompressSession(s.graph, s.currentSession, summary)
	if err != nil {
		return 0, err
	}
	s.dirty = true
	s.currentSession = 0

	if saveErr := s.saveLocked(); saveErr != nil {
		return episodeID, saveErr
	}
	return episodeID, nil
}

// TransactionEvent is one event of a CommitTransaction batch. Edges are
// passed separately as graphengine.NewEdge values with raw node ids, which
// may name ids the batch itself will be assigned.
type TransactionEvent = graphengine.NewEvent

// CommitTransaction ingests events and edges into a scratch copy of the
// graph first so a validation failure (e.g. a dangling edge) leaves the
// live graph untouched, then swaps the scratch graph in, marks dirty, and
// forces a synchronous save. Returns the newly allocated node ids in
// order.
func (s *Session) CommitTransaction(ctx context.Context, events []TransactionEvent, edges []graphengine.NewEdge) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scratch, err := graphengine.Decode(mustEncode(s.graph))
	if err != nil {
		return nil, fmt.Errorf("memsession: transaction: snapshot graph: %w", err)
	}

	for i := range events {
		if events[i].SessionID == 0 {
			events[i].SessionID = s.currentSession
		}
	}

	result, err := s.write.Ingest(scratch, events, edges)
	if err != nil {
		return nil, fmt.Errorf("memsession: transaction rejected, nothing committed: %w", err)
	}

	s.graph = scratch
	s.dirty = true

	if saveErr := s.saveLocked(); saveErr != nil {
		return result.NewNodeIDs, saveErr
	}
	return result.NewNodeIDs, nil
}

func mustEncode(g *graphengine.Graph) []byte {
	data, err := graphengine.Encode(g)
	if err != nil {
		// Encode only fails on gob's own internal invariants (unsupported
		// types), never on graph content; a Graph built exclusively through
		// WriteEngine can't produce one.
		panic(fmt.Sprintf("memsession: encode of in-memory graph failed: %v", err))
	}
	return data
}

// Dirty reports whether the graph has unsaved changes.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Save writes the graph to its backing file now, failing fast on error,
// dirty and lastSave are left untouched so the next MaybeAutoSave retries.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked performs the atomic temp-file-then-rename write. Caller must
// hold s.mu.
func (s *Session) saveLocked() error {
	data, err := graphengine.Encode(s.graph)
	if err != nil {
		return fmt.Errorf("memsession: encode: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".%s.tmp-*", filepath.Base(s.filePath)))
	if err != nil {
		return fmt.Errorf("memsession: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("memsession: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("memsession: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("memsession: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("memsession: rename into place: %w", err)
	}

	s.dirty = false
	s.lastSave = time.Now()
	return nil
}

// MaybeAutoSave saves if the graph is dirty and autoSaveInterval has
// elapsed since the last save, retrying transient failures with
// exponential backoff. Intended to be called from a background ticker
// goroutine (see StartAutoSave), not from request handlers.
func (s *Session) MaybeAutoSave(ctx context.Context) {
	s.mu.Lock()
	due := s.dirty && time.Since(s.lastSave) >= s.autoSaveInterval
	s.mu.Unlock()
	if !due {
		return
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	err := backoff.Retry(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.saveLocked()
	}, bo)
	if err != nil {
		logging.Component("memsession").Warn().Err(err).Str("path", s.filePath).Msg("auto-save failed, will retry next tick")
	}
}

// StartAutoSave launches the background ticker that drives MaybeAutoSave
// until Close is called.
func (s *Session) StartAutoSave(ctx context.Context) {
	s.stopAutoSave = make(chan struct{})
	s.autoSaveWG.Add(1)
	go func() {
		defer s.autoSaveWG.Done()
		ticker := time.NewTicker(s.autoSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.MaybeAutoSave(ctx)
			case <-s.stopAutoSave:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close flushes a dirty graph and stops the auto-save goroutine. Save
// failures here are logged, not returned, since by the time Close runs there's
// no caller left to hand an error to.
func (s *Session) Close() {
	if s.stopAutoSave != nil {
		close(s.stopAutoSave)
		s.autoSaveWG.Wait()
	}

	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()

	if dirty {
		if err := s.Save(); err != nil {
			logging.Component("memsession").Error().Err(err).Str("path", s.filePath).Msg("failed to flush memory graph on close")
		}
	}
}
