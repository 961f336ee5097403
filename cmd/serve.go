package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v2"

	"github.com/dargueta/mfskit"
	"github.com/dargueta/mfskit/driver"
	"github.com/dargueta/mfskit/file_systems/mfs"
)

// volumeServer serves the contents of one mounted volume. Volumes aren't safe
// for concurrent use so every request holds the lock.
type volumeServer struct {
	lock   sync.Mutex
	volume *mfs.Volume
	files  *driver.Driver
}

func newVolumeServer(volume *mfs.Volume) *volumeServer {
	return &volumeServer{volume: volume, files: driver.New(volume)}
}

// entryResponse is the JSON form of a directory entry.
type entryResponse struct {
	Name         string    `json:"name"`
	FileNumber   uint64    `json:"file_number"`
	Type         string    `json:"type"`
	Creator      string    `json:"creator"`
	DataSize     int64     `json:"data_size"`
	ResourceSize int64     `json:"resource_size"`
	Locked       bool      `json:"locked"`
	CreatedAt    time.Time `json:"created_at"`
	ModifiedAt   time.Time `json:"modified_at"`
}

func newEntryResponse(stat mfskit.FileStat) entryResponse {
	return entryResponse{
		Name:         stat.Name,
		FileNumber:   stat.FileNumber,
		Type:         stat.TypeCode,
		Creator:      stat.CreatorCode,
		DataSize:     stat.Size,
		ResourceSize: stat.ResourceSize,
		Locked:       stat.ModeFlags&mfskit.S_IWUSR == 0,
		CreatedAt:    stat.CreatedAt,
		ModifiedAt:   stat.LastModified,
	}
}

// volumeResponse is the JSON form of the volume information.
type volumeResponse struct {
	Label       string `json:"label"`
	Files       uint64 `json:"files"`
	BlockSize   int64  `json:"block_size"`
	TotalBlocks uint64 `json:"total_blocks"`
	FreeBlocks  uint64 `json:"free_blocks"`
}

func newRouter(server *volumeServer, logger *log.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/volume", server.getVolume)
		r.Get("/entries", server.listEntries)
		r.Get("/entries/{name}", server.getEntry)
	})
	r.Get("/files/{name}", server.getFile)
	return r
}

// nameParam returns the file name from the request path. Names may contain
// escaped slashes.
func nameParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name, nil
	}
	return url.PathUnescape(name)
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, mfskit.ErrNotFound) {
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}

// getVolume handles GET /api/volume
func (s *volumeServer) getVolume(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	stat := s.files.FSStat()
	writeJSON(w, volumeResponse{
		Label:       stat.Label,
		Files:       stat.Files,
		BlockSize:   stat.BlockSize,
		TotalBlocks: stat.TotalBlocks,
		FreeBlocks:  stat.BlocksFree,
	})
}

// listEntries handles GET /api/entries
func (s *volumeServer) listEntries(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	entries, err := s.volume.ReadDir()
	if err != nil {
		writeError(w, err)
		return
	}

	blockSize := s.volume.Descriptor().AllocBlockSize
	result := make([]entryResponse, len(entries))
	for i := range entries {
		result[i] = newEntryResponse(entries[i].Stat(blockSize))
	}
	writeJSON(w, result)
}

// getEntry handles GET /api/entries/{name}
func (s *volumeServer) getEntry(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	stat, err := s.volume.StatEntry(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, newEntryResponse(stat))
}

// getFile handles GET /files/{name}
// Supports query param ?fork=rsrc to get the resource fork instead of the data
// fork.
func (s *volumeServer) getFile(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	path := name
	switch r.URL.Query().Get("fork") {
	case "", "data":
	case "rsrc":
		path += driver.ResourceForkSuffix
	default:
		http.Error(w, "invalid fork parameter (use \"data\" or \"rsrc\")", http.StatusBadRequest)
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	info, err := s.files.Stat(path)
	if err != nil {
		writeError(w, err)
		return
	}
	contents, err := s.files.ReadFile(path)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, name, info.ModTime(), bytes.NewReader(contents))
}

func serveVolume(ctx *cli.Context) error {
	err := requireArgs(ctx, 1)
	if err != nil {
		return err
	}

	volume, _, err := mountImage(ctx, ctx.Args().Get(0))
	if err != nil {
		return err
	}
	defer volume.Close()

	logger := newLogger(ctx)
	server := &http.Server{
		Addr:    ctx.String("listen"),
		Handler: newRouter(newVolumeServer(volume), logger),
	}

	go func() {
		<-ctx.Context.Done()
		server.Close()
	}()

	logger.Printf("serving %q on http://%s", volume.FSStat().Label, server.Addr)
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
