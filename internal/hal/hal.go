package hal

import (
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"github.com/kapitanov/chip8vm/internal/runner"
	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	DefaultScale = 16
	FrameRate    = 60
)

const (
	sampleRate = 44100

	// a square wave period of 100 samples is a 441Hz tone
	tonePeriod    = 100
	toneAmplitude = 0x20
	toneBuffer    = tonePeriod * 8
)

type HAL struct {
	window          *sdl.Window
	renderer        *sdl.Renderer
	texture         *sdl.Texture
	backBuffer      []uint32
	backBufferPitch int

	ticker *time.Ticker

	audio    sdl.AudioDeviceID
	hasAudio bool
	tone     bool
	wave     []byte
}

var _ runner.Frontend = (*HAL)(nil)

// New opens a window scale times the size of the display.
func New(scale int) (*HAL, error) {
	if scale <= 0 {
		scale = DefaultScale
	}
	windowWidth := int32(vm.ScreenWidth * scale)
	windowHeight := int32(vm.ScreenHeight * scale)

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("failed to init sdl: %w", err)
	}

	window, err := sdl.CreateWindow("CHIP-8", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, windowWidth, windowHeight, sdl.WINDOW_SHOWN)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl window: %w", err)
	}
	slog.Debug("hal: create window", "width", windowWidth, "height", windowHeight)
	window.Show()

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl renderer: %w", err)
	}
	err = renderer.SetLogicalSize(windowWidth, windowHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to resize sdl renderer: %w", err)
	}
	slog.Debug("hal: create renderer")

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_ARGB8888, sdl.TEXTUREACCESS_STREAMING, vm.ScreenWidth, vm.ScreenHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl texture: %w", err)
	}
	slog.Debug("hal: create texture")

	hal := &HAL{
		window:          window,
		renderer:        renderer,
		texture:         texture,
		backBuffer:      make([]uint32, vm.ScreenWidth*vm.ScreenHeight),
		backBufferPitch: int(vm.ScreenWidth) * int(unsafe.Sizeof(uint32(0))),
		ticker:          time.NewTicker(time.Second / FrameRate),
		wave:            squareWave(),
	}

	if err := hal.openAudio(); err != nil {
		slog.Warn("hal: no audio", "err", err)
	}

	return hal, nil
}

func (hal *HAL) openAudio() error {
	spec := &sdl.AudioSpec{
		Freq:     sampleRate,
		Format:   sdl.AUDIO_U8,
		Channels: 1,
		Samples:  512,
	}

	var actualSpec sdl.AudioSpec

	id, err := sdl.OpenAudioDevice("", false, spec, &actualSpec, 0)
	if err != nil {
		return fmt.Errorf("failed to open sdl audio device: %w", err)
	}
	slog.Debug("hal: open audio", "freq", actualSpec.Freq, "samples", actualSpec.Samples)

	hal.audio = id
	hal.hasAudio = true
	return nil
}

func squareWave() []byte {
	const silence = 0x80

	wave := make([]byte, toneBuffer)
	for i := range wave {
		if i%tonePeriod < tonePeriod/2 {
			wave[i] = silence + toneAmplitude
		} else {
			wave[i] = silence - toneAmplitude
		}
	}
	return wave
}

func (hal *HAL) Shutdown() {
	hal.ticker.Stop()

	if hal.hasAudio {
		sdl.CloseAudioDevice(hal.audio)
	}

	if err := hal.texture.Destroy(); err != nil {
		slog.Error("failed to destroy sdl texture", "err", err)
	}

	if err := hal.renderer.Destroy(); err != nil {
		slog.Error("failed to destroy sdl renderer", "err", err)
	}

	if err := hal.window.Destroy(); err != nil {
		slog.Error("failed to destroy sdl window", "err", err)
	}

	sdl.Quit()
}

func (hal *HAL) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		switch e.GetType() {
		case sdl.QUIT:
			slog.Debug("hal: exit requested")
			return runner.ErrQuit

		case sdl.KEYDOWN:
			err := hal.processKeyDown(e.(*sdl.KeyboardEvent), keyDown)
			if err != nil {
				return err
			}

		case sdl.KEYUP:
			hal.processKeyUp(e.(*sdl.KeyboardEvent), keyUp)
		}
	}

	return nil
}

func (hal *HAL) processKeyDown(e *sdl.KeyboardEvent, callback func(vm.Key)) error {
	switch e.Keysym.Scancode {
	case sdl.SCANCODE_BACKSPACE:
		return runner.ErrReboot
	case sdl.SCANCODE_F1:
		return runner.ErrPause
	}

	// ignore auto-repeat, a held key is still one press
	if e.Repeat != 0 {
		return nil
	}

	if key, ok := keyMap[e.Keysym.Scancode]; ok {
		callback(key)
	}

	return nil
}

func (hal *HAL) processKeyUp(e *sdl.KeyboardEvent, callback func(vm.Key)) {
	if key, ok := keyMap[e.Keysym.Scancode]; ok {
		callback(key)
	}
}

// Physical                Logical
// ================        =================
// | 1 | 2 | 3 | 4 |       | 1 | 2 | 3 | C |
// | q | w | e | r |       | 4 | 5 | 6 | D |
// | a | s | d | f |  <=>  | 7 | 8 | 9 | E |
// | z | x | c | v |       | A | 0 | B | F |
// ================        =================
var keyMap = map[sdl.Scancode]vm.Key{
	sdl.SCANCODE_1: vm.Key1, sdl.SCANCODE_2: vm.Key2, sdl.SCANCODE_3: vm.Key3, sdl.SCANCODE_4: vm.KeyC,
	sdl.SCANCODE_Q: vm.Key4, sdl.SCANCODE_W: vm.Key5, sdl.SCANCODE_E: vm.Key6, sdl.SCANCODE_R: vm.KeyD,
	sdl.SCANCODE_A: vm.Key7, sdl.SCANCODE_S: vm.Key8, sdl.SCANCODE_D: vm.Key9, sdl.SCANCODE_F: vm.KeyE,
	sdl.SCANCODE_Z: vm.KeyA, sdl.SCANCODE_X: vm.Key0, sdl.SCANCODE_C: vm.KeyB, sdl.SCANCODE_V: vm.KeyF,
}

func (hal *HAL) Draw(pixels [vm.ScreenWidth * vm.ScreenHeight]bool) error {
	const (
		bgColor = uint32(0x000000)
		fgColor = uint32(0xbea700)
	)

	for i, lit := range pixels {
		color := bgColor
		if lit {
			color = fgColor
		}

		hal.backBuffer[i] = color
	}

	backBufferPtr := unsafe.Pointer(&hal.backBuffer[0])
	if err := hal.texture.Update(nil, backBufferPtr, hal.backBufferPitch); err != nil {
		return fmt.Errorf("failed to update sdl texture: %w", err)
	}

	if err := hal.renderer.Clear(); err != nil {
		return fmt.Errorf("failed to clear sdl renderer: %w", err)
	}

	if err := hal.renderer.Copy(hal.texture, nil, nil); err != nil {
		return fmt.Errorf("failed to copy sdl texture to renderer: %w", err)
	}

	hal.renderer.Present()
	return nil
}

// Tone starts or stops the beeper.
func (hal *HAL) Tone(on bool) error {
	hal.tone = on
	if !hal.hasAudio {
		return nil
	}

	if !on {
		sdl.PauseAudioDevice(hal.audio, true)
		sdl.ClearQueuedAudio(hal.audio)
		return nil
	}

	if err := hal.queueTone(); err != nil {
		return err
	}
	sdl.PauseAudioDevice(hal.audio, false)
	return nil
}

// queueTone keeps enough of the wave queued to last until the next frame.
func (hal *HAL) queueTone() error {
	const perFrame = sampleRate / FrameRate

	for sdl.GetQueuedAudioSize(hal.audio) < 2*perFrame {
		if err := sdl.QueueAudio(hal.audio, hal.wave); err != nil {
			return fmt.Errorf("failed to queue sdl audio: %w", err)
		}
	}
	return nil
}

// WaitForNextFrame blocks until the next 60Hz frame starts.
func (hal *HAL) WaitForNextFrame() error {
	if hal.tone && hal.hasAudio {
		if err := hal.queueTone(); err != nil {
			return err
		}
	}

	<-hal.ticker.C
	return nil
}
