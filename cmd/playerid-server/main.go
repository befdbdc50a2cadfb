// Command playerid-server is a thin, optional HTTP/WS control surface
// wrapping Engine: gin handlers for the command side (AddAnchor,
// UpsertPlayer, LoadVideo, ProcessFrame) and a websocket hub for the
// event side (AssignmentsReady, WarningIssued, PersistFailed). The
// Engine package itself has no dependency on this binary; it exists so
// a UI process can drive the engine over the wire instead of linking
// against it directly, matching coinjoin-engine's gin route-group
// layout and SentryShot's push-event websocket use.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nmichlo/playerid-go/pkg/playerid"
	"github.com/nmichlo/playerid-go/pkg/playerid/gallery"
	"github.com/nmichlo/playerid-go/pkg/playerid/model"
)

type server struct {
	engine *playerid.Engine
	hub    *Hub
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	galleryPath := flag.String("gallery", "gallery.json", "path to gallery JSON file")
	configPath := flag.String("config", "", "optional ini config file")
	flag.Parse()

	cfg := model.DefaultConfig()
	if *configPath != "" {
		if err := cfg.LoadINI(*configPath); err != nil {
			log.Printf("playerid-server: ini config %s not applied: %v", *configPath, err)
		}
	}

	srv := &server{
		engine: playerid.NewEngine(cfg, *galleryPath, nil),
		hub:    NewHub(),
	}
	go srv.hub.Run()

	router := srv.setupRouter()
	log.Printf("playerid-server: listening on %s", *addr)
	if err := router.Run(*addr); err != nil {
		log.Fatalf("playerid-server: %v", err)
	}
}

func (s *server) setupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/ws", s.hub.Subscribe)

	r.POST("/videos", s.handleLoadVideo)
	r.POST("/anchors", s.handleAddAnchor)
	r.POST("/players", s.handleUpsertPlayer)
	r.POST("/frames/:n", s.handleProcessFrame)
	r.GET("/gallery", s.handleListGallery)

	return r
}

type loadVideoRequest struct {
	Path   string `json:"path"`
	Width  int    `json:"frame_width"`
	Height int    `json:"frame_height"`
}

func (s *server) handleLoadVideo(c *gin.Context) {
	var req loadVideoRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.LoadVideo(req.Path, req.Width, req.Height); err != nil {
		s.broadcastEvent("WarningIssued", gin.H{"message": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type addAnchorRequest struct {
	Frame int            `json:"frame"`
	Tag   model.AnchorTag `json:"tag"`
}

func (s *server) handleAddAnchor(c *gin.Context) {
	var req addAnchorRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.AddAnchor(req.Frame, req.Tag); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *server) handleUpsertPlayer(c *gin.Context) {
	var params gallery.UpsertParams
	if err := c.BindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.engine.UpsertPlayer(params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"player_id": id})
}

func (s *server) handleListGallery(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Gallery().ListPlayers(false))
}

type processFrameRequest struct {
	Detections []model.Detection `json:"detections"`
}

// handleProcessFrame runs C3-C6 for the posted detections and
// broadcasts the resulting assignments as an AssignmentsReady event,
// matching the event side of spec.md §9's command/event split. A save
// failure after assignment is reported as a PersistFailed event rather
// than dropped silently.
func (s *server) handleProcessFrame(c *gin.Context) {
	frameNum, err := parseFrameParam(c.Param("n"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req processFrameRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assignments, err := s.engine.ProcessFrame(context.Background(), frameNum, req.Detections)
	if err != nil {
		s.broadcastEvent("WarningIssued", gin.H{"message": err.Error()})
	}
	s.broadcastEvent("AssignmentsReady", gin.H{"frame": frameNum, "assignments": assignments})

	if err := s.engine.SaveAll(); err != nil {
		s.broadcastEvent("PersistFailed", gin.H{"message": err.Error()})
	}

	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

func parseFrameParam(raw string) (int, error) {
	return strconv.Atoi(raw)
}

func (s *server) broadcastEvent(kind string, payload interface{}) {
	body, err := json.Marshal(gin.H{"event": kind, "data": payload})
	if err != nil {
		log.Printf("playerid-server: marshal event %s: %v", kind, err)
		return
	}
	s.hub.Broadcast(body)
}
