// Package aoiserver serves a small map UI for drawing AOIs and saving
// them as GeoJSON files the ordering commands can consume.
package aoiserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/peterstace/simplefeatures/geom"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Server struct {
	geojsonDir string
	router     *gin.Engine
}

func New(geojsonDir string) *Server {
	s := &Server{geojsonDir: geojsonDir}

	router := gin.Default()
	router.GET("/", s.index)
	router.POST("/api/aoi", s.saveAOI)
	router.GET("/api/aois", s.listAOIs)
	s.router = router
	return s
}

func (s *Server) Run(port int) error {
	if err := os.MkdirAll(s.geojsonDir, 0o755); err != nil {
		return fmt.Errorf("failed to create geojson directory: %w", err)
	}
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) index(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, indexHTML)
}

type saveAOIRequest struct {
	Name     string          `json:"name" binding:"required"`
	Geometry json.RawMessage `json:"geometry" binding:"required"`
}

func (s *Server) saveAOI(c *gin.Context) {
	var req saveAOIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !nameRe.MatchString(req.Name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name may only contain letters, digits, underscores and dashes"})
		return
	}
	g, err := geom.UnmarshalGeoJSON(req.Geometry)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid geometry: %v", err)})
		return
	}
	if g.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "geometry is empty"})
		return
	}

	if err := os.MkdirAll(s.geojsonDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	path := filepath.Join(s.geojsonDir, req.Name+".geojson")
	encoded, err := g.MarshalJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"name": req.Name, "path": path})
}

func (s *Server) listAOIs(c *gin.Context) {
	entries, err := os.ReadDir(s.geojsonDir)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusOK, gin.H{"aois": []string{}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".geojson") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".geojson"))
	}
	c.JSON(http.StatusOK, gin.H{"aois": names})
}
