// Package project is the primary-registry-aware façade for the "Project
// Store": identity resolution across an
// optional external markdown registry and the workflow backend's own
// durable state, slug-deduplicated creation, filtered listing, and
// manual status transitions. It composes pkg/orchestrator (which knows
// nothing about registries or slugs) and pkg/workflow's Backend
// directly.
package project

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/roshni/pkg/budget"
	"github.com/kadirpekel/roshni/pkg/orchestrator"
	"github.com/kadirpekel/roshni/pkg/workflow"
)

// Store resolves project identity across an optional external registry
// directory (markdown-with-frontmatter files, human-editable) and the
// workflow backend's own per-project state directories. When
// registryDir is empty, the backend's state directories are the sole
// registry and ids follow the legacy proj-YYYYMMDD-NNN scheme.
type Store struct {
	orch        *orchestrator.Orchestrator
	backend     *workflow.Backend
	registryDir string
	log         *slog.Logger

	createMu sync.Mutex
	cacheMu  sync.RWMutex
	cache    map[string]*workflow.Project
}

// NewStore builds a Store. registryDir may be empty.
func NewStore(orch *orchestrator.Orchestrator, backend *workflow.Backend, registryDir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		orch:        orch,
		backend:     backend,
		registryDir: registryDir,
		log:         log,
		cache:       make(map[string]*workflow.Project),
	}
}

func (s *Store) registryPath(id string) string {
	if s.registryDir == "" {
		return ""
	}
	return filepath.Join(s.registryDir, id+".md")
}

// makeID allocates a fresh project id: a deduplicated goal slug when a
// registry is configured, else a sequential proj-YYYYMMDD-NNN id scoped
// to today scanning existing workflow state directories.
func (s *Store) makeID(goal string) (string, error) {
	if s.registryDir == "" {
		return s.nextSequentialID()
	}

	base := slugify(goal)
	slug := base
	for counter := 1; ; counter++ {
		if _, err := os.Stat(s.registryPath(slug)); os.IsNotExist(err) {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}

func (s *Store) nextSequentialID() (string, error) {
	today := time.Now().Format("20060102")
	prefix := "proj-" + today + "-"

	ids, err := s.backend.ListProjectIDs()
	if err != nil {
		return "", err
	}
	max := 0
	for _, id := range ids {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		var seq int
		if _, err := fmt.Sscanf(id[len(prefix):], "%d", &seq); err == nil && seq > max {
			max = seq
		}
	}
	return fmt.Sprintf("%s%03d", prefix, max+1), nil
}

// Create allocates an id, drives the orchestrator to plan and
// checkpoint the new project, and — when a registry is configured —
// writes its registry markdown: the minimal form if planning produced
// no phases (so a pre-existing human-authored file is never
// clobbered), or the full rendered form otherwise.
func (s *Store) Create(ctx context.Context, goal string, limits budget.Limits, tags []string) (*workflow.Project, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	id, err := s.makeID(goal)
	if err != nil {
		return nil, fmt.Errorf("project: allocate id: %w", err)
	}

	created, err := s.orch.StartProject(ctx, id, goal, limits, tags)
	if err != nil {
		return nil, err
	}

	if s.registryDir != "" {
		if err := os.MkdirAll(s.registryDir, 0o755); err != nil {
			return nil, fmt.Errorf("project: create registry dir: %w", err)
		}
		if len(created.Phases) == 0 {
			if err := writeMinimal(s.registryPath(id), created); err != nil {
				return nil, err
			}
		} else if err := s.syncRegistry(created); err != nil {
			return nil, err
		}
	}

	s.cachePut(created)
	s.log.Info("created project", "id", id, "goal", truncate(goal, 60))
	return created, nil
}

// Get resolves a project by id. Resolution order: in-memory cache,
// then registry markdown (if configured) merged with workflow
// execution state when present, then an orphaned workflow-only
// project. Returns (nil, nil) if nothing names this id.
func (s *Store) Get(id string) (*workflow.Project, error) {
	if p, ok := s.cacheGet(id); ok {
		return p, nil
	}

	if s.registryDir != "" {
		regPath := s.registryPath(id)
		content, err := os.ReadFile(regPath)
		if err == nil {
			regProject, err := parseRegistryProject(id, string(content))
			if err != nil {
				return nil, fmt.Errorf("project: parse registry file %s: %w", regPath, err)
			}

			wfProject, err := s.backend.Resume(id, regPath)
			if err != nil {
				// No workflow execution state (or it failed to load) —
				// the registry entry alone is the project.
				s.cachePut(regProject)
				return regProject, nil
			}
			wfProject.ID = id
			wfProject.Goal = regProject.Goal
			if len(regProject.Tags) > 0 {
				wfProject.Tags = regProject.Tags
			}
			s.cachePut(wfProject)
			return wfProject, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("project: read registry file %s: %w", regPath, err)
		}
	}

	wfProject, err := s.backend.Resume(id, "")
	if err != nil {
		return nil, nil
	}
	s.cachePut(wfProject)
	return wfProject, nil
}

// Update persists project: checkpoints the workflow backend and, if a
// registry is configured, re-renders its registry markdown.
func (s *Store) Update(project *workflow.Project) error {
	if err := s.backend.Checkpoint(project); err != nil {
		return err
	}
	if s.registryDir != "" {
		if err := s.syncRegistry(project); err != nil {
			return err
		}
	}
	s.cachePut(project)
	return nil
}

func (s *Store) syncRegistry(project *workflow.Project) error {
	doc, err := render(project)
	if err != nil {
		return err
	}
	return os.WriteFile(s.registryPath(project.ID), []byte(doc), 0o644)
}

// Transition applies a manual status change through the orchestrator's
// transition table, then persists via Update.
func (s *Store) Transition(project *workflow.Project, to workflow.Status) error {
	if err := s.orch.Transition(project, to); err != nil {
		return err
	}
	return s.Update(project)
}

// ListOptions filters List's result set.
type ListOptions struct {
	Status workflow.Status
	Tag    string
	Limit  int
}

// List walks the registry first (if configured), then picks up
// workflow-only ids the registry doesn't name, applies Status/Tag
// filters, and sorts by last-updated descending.
func (s *Store) List(opts ListOptions) ([]*workflow.Project, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	var projects []*workflow.Project
	seen := make(map[string]bool)

	if s.registryDir != "" {
		entries, err := os.ReadDir(s.registryDir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("project: list registry dir: %w", err)
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			slug := strings.TrimSuffix(name, ".md")
			seen[slug] = true
			p, err := s.Get(slug)
			if err != nil {
				return nil, err
			}
			if p == nil || !matchesFilter(p, opts) {
				continue
			}
			projects = append(projects, p)
		}
	}

	ids, err := s.backend.ListProjectIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		p, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		if p == nil || !matchesFilter(p, opts) {
			continue
		}
		projects = append(projects, p)
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].UpdatedAt.After(projects[j].UpdatedAt) })
	if len(projects) > limit {
		projects = projects[:limit]
	}
	return projects, nil
}

func matchesFilter(p *workflow.Project, opts ListOptions) bool {
	if opts.Status != "" && p.Status != opts.Status {
		return false
	}
	if opts.Tag != "" {
		found := false
		for _, t := range p.Tags {
			if t == opts.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SaveArtifact writes content under the project's artifacts directory
// and records it on the project. name is slugified to a
// filesystem-safe filename; mimeType defaults to "text/markdown".
func (s *Store) SaveArtifact(project *workflow.Project, name, content, mimeType string) (workflow.Artifact, error) {
	if mimeType == "" {
		mimeType = "text/markdown"
	}
	dir := s.backend.ArtifactsPath(project.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return workflow.Artifact{}, fmt.Errorf("project: create artifacts dir: %w", err)
	}

	ext := ".txt"
	if mimeType == "text/markdown" {
		ext = ".md"
	}
	filename := slugify(name) + ext
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return workflow.Artifact{}, fmt.Errorf("project: write artifact: %w", err)
	}

	artifact := workflow.Artifact{
		Name:      name,
		Path:      filepath.Join("artifacts", filename),
		MimeType:  mimeType,
		CreatedAt: time.Now(),
	}
	project.Artifacts = append(project.Artifacts, artifact)
	if err := s.Update(project); err != nil {
		return workflow.Artifact{}, err
	}
	s.log.Info("saved artifact", "project_id", project.ID, "name", name)
	return artifact, nil
}

// WorkspacePath returns the workflow backend's workspace directory for
// a project, for callers that need to read/write worker logs or
// artifacts directly.
func (s *Store) WorkspacePath(id string) string { return s.backend.WorkspacePath(id) }

func (s *Store) cacheGet(id string) (*workflow.Project, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	p, ok := s.cache[id]
	return p, ok
}

func (s *Store) cachePut(p *workflow.Project) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache[p.ID] = p
}

// invalidate drops id from the in-memory cache, forcing the next Get to
// re-read the registry file from disk (used by Watcher).
func (s *Store) invalidate(id string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.cache, id)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
