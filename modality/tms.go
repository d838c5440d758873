package modality

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc/pool"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	xdraw "golang.org/x/image/draw"

	_ "image/jpeg"

	"github.com/geodataset/gridmaker/grid"
	"github.com/geodataset/gridmaker/queue"
)

var meter = otel.Meter("github.com/geodataset/gridmaker/modality")

var tileURLTemplates = map[string]string{
	"google": "https://mt1.google.com/vt/lyrs=s&x={x}&y={y}&z={z}",
	"osm":    "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
}

// The OSM tile usage policy requires an identifying user agent and at
// most two requests per second.
const (
	osmUserAgent     = "geo-dataset-maker/0.1.0"
	defaultUserAgent = "Mozilla/5.0"

	osmTileDelay     = 500 * time.Millisecond
	defaultTileDelay = 100 * time.Millisecond
)

// TMSConfig configures one tile imagery modality.
type TMSConfig struct {
	Name string
	// BBoxSize is the square extent in degrees fetched around each point.
	BBoxSize float64
	// ZoomLevel selects the slippy-map zoom for tile requests.
	ZoomLevel int
	// TileServer is "google", "osm" or a custom URL template with
	// {x}, {y} and {z} placeholders.
	TileServer string
	OutputDir  string
	// Workers caps concurrent point processing in batch mode.
	Workers int
}

// TMS downloads satellite tiles around each point, stitches them into a
// fixed-size image and writes one png per point.
type TMS struct {
	cfg       TMSConfig
	urlTmpl   string
	userAgent string
	targetPx  int

	client *fasthttp.Client
	queue  *queue.Queue
	log    *slog.Logger

	metricTilesFetched metric.Int64Counter

	mu          sync.Mutex
	lastRequest time.Time
	tileDelay   time.Duration
}

var _ grid.Consumer = (*TMS)(nil)

// NewTMS builds a tile modality. q may be nil when no consumer
// backpressure is wanted.
func NewTMS(cfg TMSConfig, q *queue.Queue, log *slog.Logger) (*TMS, error) {
	if cfg.BBoxSize <= 0 {
		return nil, fmt.Errorf("tms %q: bbox_size must be positive, got %v", cfg.Name, cfg.BBoxSize)
	}
	if cfg.ZoomLevel < 1 || cfg.ZoomLevel > 22 {
		return nil, fmt.Errorf("tms %q: zoom_level %d out of range", cfg.Name, cfg.ZoomLevel)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if log == nil {
		log = slog.Default()
	}

	urlTmpl, ok := tileURLTemplates[cfg.TileServer]
	if !ok {
		if !strings.Contains(cfg.TileServer, "{x}") {
			return nil, fmt.Errorf("tms %q: unknown tile server %q", cfg.Name, cfg.TileServer)
		}
		urlTmpl = cfg.TileServer
	}

	userAgent := defaultUserAgent
	tileDelay := defaultTileDelay
	if cfg.TileServer == "osm" {
		userAgent = osmUserAgent
		tileDelay = osmTileDelay
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	tilesFetched, err := meter.Int64Counter("tiles_fetched_total")
	if err != nil {
		return nil, err
	}

	return &TMS{
		cfg:       cfg,
		urlTmpl:   urlTmpl,
		userAgent: userAgent,
		targetPx:  pixelsForBBox(cfg.BBoxSize, cfg.ZoomLevel),
		client: &fasthttp.Client{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		queue:     q,
		log:       log.With("modality", cfg.Name),
		tileDelay: tileDelay,

		metricTilesFetched: tilesFetched,
	}, nil
}

// TargetPixels is the edge length of produced images.
func (m *TMS) TargetPixels() int { return m.targetPx }

// ConsumePoint implements grid.Consumer
func (m *TMS) ConsumePoint(ctx context.Context, p grid.Point) error {
	if m.queue != nil {
		if err := m.queue.WaitCanProduce(ctx, time.Second); err != nil {
			return err
		}
	}

	img, err := m.fetchImage(ctx, p)
	if err != nil {
		return err
	}
	path := filepath.Join(m.cfg.OutputDir, fmt.Sprintf("%d_%d.png", p.ID, p.Label))
	if err := writePNG(path, img); err != nil {
		return err
	}

	if m.queue != nil {
		if _, err := m.queue.Add(path); err != nil {
			return err
		}
	}
	m.log.Debug("saved tile image", "id", p.ID, "path", path)
	return nil
}

// ConsumeBatch implements grid.Consumer
func (m *TMS) ConsumeBatch(ctx context.Context, points []grid.Point) error {
	wp := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(m.cfg.Workers)
	for _, p := range points {
		wp.Go(func(ctx context.Context) error {
			return m.ConsumePoint(ctx, p)
		})
	}
	return wp.Wait()
}

// fetchImage downloads every tile overlapping the point's bound,
// pastes them into one canvas and center-crops to the target size.
func (m *TMS) fetchImage(ctx context.Context, p grid.Point) (image.Image, error) {
	bound := BoundAround(p.Coord, m.cfg.BBoxSize)
	tiles := TilesForBound(bound, m.cfg.ZoomLevel)
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no tiles cover point %d at zoom %d", p.ID, m.cfg.ZoomLevel)
	}

	minX, minY := tiles[0].X, tiles[0].Y
	maxX, maxY := tiles[0].X, tiles[0].Y
	for _, t := range tiles {
		minX, maxX = min(minX, t.X), max(maxX, t.X)
		minY, maxY = min(minY, t.Y), max(maxY, t.Y)
	}

	canvas := image.NewRGBA(image.Rect(0, 0,
		(maxX-minX+1)*tileSize, (maxY-minY+1)*tileSize))
	for _, t := range tiles {
		img := m.downloadTile(ctx, t)
		origin := image.Pt((t.X-minX)*tileSize, (t.Y-minY)*tileSize)
		draw.Draw(canvas, image.Rectangle{Min: origin, Max: origin.Add(image.Pt(tileSize, tileSize))},
			img, image.Point{}, draw.Src)
	}
	return centerCrop(canvas, m.targetPx), nil
}

// downloadTile fetches one tile, retrying transient failures. A tile
// that cannot be fetched is replaced by a gray placeholder so a single
// dead tile does not lose the whole image.
func (m *TMS) downloadTile(ctx context.Context, t Tile) image.Image {
	url := tileURL(m.urlTmpl, t)

	var img image.Image
	op := func() error {
		m.throttle()

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(url)
		req.Header.SetUserAgent(m.userAgent)
		if err := m.client.DoTimeout(req, resp, 10*time.Second); err != nil {
			return err
		}
		if resp.StatusCode() != fasthttp.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode())
		}
		decoded, _, err := image.Decode(bytes.NewReader(resp.Body()))
		if err != nil {
			return backoff.Permanent(err)
		}
		img = decoded
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		m.log.Warn("tile download failed, using placeholder",
			"x", t.X, "y", t.Y, "z", t.Z, "error", err)
		return grayTile()
	}
	m.metricTilesFetched.Add(ctx, 1)
	return img
}

func (m *TMS) throttle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wait := m.tileDelay - time.Since(m.lastRequest); wait > 0 {
		time.Sleep(wait)
	}
	m.lastRequest = time.Now()
}

func tileURL(tmpl string, t Tile) string {
	r := strings.NewReplacer(
		"{x}", fmt.Sprint(t.X),
		"{y}", fmt.Sprint(t.Y),
		"{z}", fmt.Sprint(t.Z),
	)
	return r.Replace(tmpl)
}

// centerCrop cuts the central target x target region out of img, or
// scales the whole image when it is smaller than the target.
func centerCrop(img *image.RGBA, target int) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == target && h == target {
		return img
	}
	if w < target || h < target {
		out := image.NewRGBA(image.Rect(0, 0, target, target))
		xdraw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		return out
	}
	x := (w - target) / 2
	y := (h - target) / 2
	return img.SubImage(image.Rect(x, y, x+target, y+target))
}

func grayTile() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, tileSize, tileSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 128}), image.Point{}, draw.Src)
	return img
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
