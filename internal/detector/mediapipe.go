package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/shadowdepth/internal/log"
)

// scriptName is the Python face mesh + hands service.
const scriptName = "perception_service.py"

// idleShutdown stops the Python process after this long without frames.
const idleShutdown = 30 * time.Second

// ErrScriptNotFound is returned when the perception service script cannot be located.
var ErrScriptNotFound = errors.New(scriptName + " not found")

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	idleTimer  *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := findScript()
	if scriptPath == "" {
		return nil, ErrScriptNotFound
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
	}, nil
}

// Detect sends the frame to the service and converts the landmarks it
// returns into frame-space bounding boxes.
//
// Protocol: 4-byte big-endian length + JPEG on stdin, one JSON line on stdout.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) (Perception, error) {
	if frame == nil || frame.Empty() {
		return Perception{}, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return Perception{}, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return Perception{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return Perception{}, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return Perception{}, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return Perception{}, fmt.Errorf("read response: %w", err)
	}

	var resp serviceResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return Perception{}, fmt.Errorf("parse response: %w", err)
	}

	d.resetIdleTimer()

	return resp.toPerception(frame.Cols(), frame.Rows(), d.config), nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, d.scriptPath,
		"--max-faces", fmt.Sprint(d.config.MaxFaces),
		"--max-hands", fmt.Sprint(d.config.MaxHands),
		"--min-confidence", fmt.Sprint(d.config.MinConfidence),
		"--min-tracking", fmt.Sprint(d.config.MinTrackingConf),
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start perception service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	log.Debug("perception service started", "script", d.scriptPath, "python", pythonPath)

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			log.Debug("perception service idle shutdown", "err", err)
		}
	})
}

func findScript() string {
	return firstExisting(
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
		filepath.Join(execDir(), "scripts", scriptName),
		filepath.Join(os.Getenv("HOME"), ".shadowdepth", "scripts", scriptName),
	)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	return firstExisting(
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir(), "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".shadowdepth/venv/bin/python"),
	)
}

func execDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(execPath)
}

func firstExisting(candidates ...string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

// serviceResponse is the JSON line written by the Python service.
type serviceResponse struct {
	Faces [][]Point2D   `json:"faces"`
	Hands []serviceHand `json:"hands"`
}

type serviceHand struct {
	Points []Point2D `json:"points"`
	Label  string    `json:"label"`
	Score  float64   `json:"score"`
}

func (r serviceResponse) toPerception(w, h int, config Config) Perception {
	var p Perception

	// first face only
	if len(r.Faces) > 0 {
		if box, ok := BoundingBox(r.Faces[0], w, h); ok {
			p.Face = &box
		}
	}

	for i, sh := range r.Hands {
		if config.MaxHands > 0 && i >= config.MaxHands {
			break
		}
		box, ok := BoundingBox(sh.Points, w, h)
		if !ok {
			continue
		}
		label := sh.Label
		if label == "" {
			label = "Unknown"
		}
		p.Hands = append(p.Hands, Hand{Box: box, Label: label, Score: sh.Score})
	}

	return p
}
