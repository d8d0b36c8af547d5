package trafficlogger

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/apernet/bequic/core/quicio"
)

const (
	indexHTML = `<!DOCTYPE html><html lang="en"><head> <meta charset="UTF-8"> <meta name="viewport" content="width=device-width, initial-scale=1.0"> <title>bequic Traffic Stats API Server</title></head><body> <p>This is a bequic Traffic Stats API server.</p><p>GET /traffic and GET /sessions return JSON.</p></body></html>`
)

// TrafficStatsServer implements quicio.EventLogger, quicio.TrafficLogger and
// http.Handler to provide a simple HTTP API to get the traffic stats per session.
type TrafficStatsServer interface {
	quicio.EventLogger
	quicio.TrafficLogger
	http.Handler
}

func NewTrafficStatsServer(secret string) TrafficStatsServer {
	return &trafficStatsServerImpl{
		StatsMap:   make(map[int]*trafficStatsEntry),
		SessionMap: make(map[int]string),
		Secret:     secret,
	}
}

type trafficStatsServerImpl struct {
	Mutex      sync.RWMutex
	StatsMap   map[int]*trafficStatsEntry
	SessionMap map[int]string // open handles to URL
	Secret     string
}

type trafficStatsEntry struct {
	URL string `json:"url"`
	Tx  uint64 `json:"tx"`
	Rx  uint64 `json:"rx"`
}

func (s *trafficStatsServerImpl) Open(url string, handle int, err error) {
	if err != nil {
		return
	}
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	s.SessionMap[handle] = url
}

func (s *trafficStatsServerImpl) Close(handle int, err error) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	delete(s.SessionMap, handle)
}

func (s *trafficStatsServerImpl) Log(handle int, tx, rx uint64) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()

	entry, ok := s.StatsMap[handle]
	if !ok {
		entry = &trafficStatsEntry{URL: s.SessionMap[handle]}
		s.StatsMap[handle] = entry
	}
	entry.Tx += tx
	entry.Rx += rx
}

func (s *trafficStatsServerImpl) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.Secret != "" && r.Header.Get("Authorization") != s.Secret {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method == http.MethodGet && r.URL.Path == "/" {
		_, _ = w.Write([]byte(indexHTML))
		return
	}
	if r.Method == http.MethodGet && r.URL.Path == "/traffic" {
		s.getTraffic(w, r)
		return
	}
	if r.Method == http.MethodGet && r.URL.Path == "/sessions" {
		s.getSessions(w, r)
		return
	}
	http.NotFound(w, r)
}

func (s *trafficStatsServerImpl) getTraffic(w http.ResponseWriter, r *http.Request) {
	bClear, _ := strconv.ParseBool(r.URL.Query().Get("clear"))
	var jb []byte
	var err error
	if bClear {
		s.Mutex.Lock()
		jb, err = json.Marshal(s.StatsMap)
		s.StatsMap = make(map[int]*trafficStatsEntry)
		s.Mutex.Unlock()
	} else {
		s.Mutex.RLock()
		jb, err = json.Marshal(s.StatsMap)
		s.Mutex.RUnlock()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(jb)
}

func (s *trafficStatsServerImpl) getSessions(w http.ResponseWriter, r *http.Request) {
	s.Mutex.RLock()
	jb, err := json.Marshal(s.SessionMap)
	s.Mutex.RUnlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(jb)
}
