//go:build linux

package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// TFT holds the ILI9341 panel state.
type TFT struct {
	spiDev    spi.Conn
	dc        gpio.PinOut
	backlight gpio.PinOut
	width     int
	height    int
	img       *image.RGBA
}

const (
	// ILI9341 commands
	cmdSWRESET = 0x01
	cmdSLPOUT  = 0x11
	cmdDISPON  = 0x29
	cmdCASet   = 0x2A
	cmdPASet   = 0x2B
	cmdRAMWR   = 0x2C
	cmdMADCTL  = 0x36
	cmdPIXFMT  = 0x3A

	// Display size (landscape)
	displayWidth  = 320
	displayHeight = 240
)

// NewTFT initializes the TFT panel.
func NewTFT() (*TFT, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph.io init: %w", err)
	}

	// The panel is on SPI1, CS0 which is /dev/spidev1.0
	port, err := spireg.Open("/dev/spidev1.0")
	if err != nil {
		return nil, fmt.Errorf("open SPI: %w", err)
	}

	conn, err := port.Connect(16*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("connect SPI: %w", err)
	}

	// DC (Data/Command) pin - GPIO39
	dc := gpioreg.ByName("GPIO39")
	if dc == nil {
		return nil, fmt.Errorf("failed to open GPIO39 (DC pin)")
	}

	// Backlight pin - GPIO12
	backlight := gpioreg.ByName("GPIO12")
	if backlight == nil {
		return nil, fmt.Errorf("failed to open GPIO12 (backlight pin)")
	}

	tft := &TFT{
		spiDev:    conn,
		dc:        dc,
		backlight: backlight,
		width:     displayWidth,
		height:    displayHeight,
		img:       image.NewRGBA(image.Rect(0, 0, displayWidth, displayHeight)),
	}

	if err := tft.init(); err != nil {
		return nil, fmt.Errorf("init display: %w", err)
	}

	slog.Info("TFT panel initialized", "width", displayWidth, "height", displayHeight)
	return tft, nil
}

// init initializes the ILI9341 display controller.
func (t *TFT) init() error {
	if err := t.backlight.Out(gpio.High); err != nil {
		return fmt.Errorf("set backlight: %w", err)
	}

	// Software reset
	if err := t.writeCommand(cmdSWRESET); err != nil {
		return err
	}

	// Sleep out
	if err := t.writeCommand(cmdSLPOUT); err != nil {
		return err
	}

	// Power control
	if err := t.writeCommand(0xC0, 0x23); err != nil {
		return err
	}
	if err := t.writeCommand(0xC1, 0x10); err != nil {
		return err
	}

	// VCM control
	if err := t.writeCommand(0xC5, 0x3E, 0x28); err != nil {
		return err
	}
	if err := t.writeCommand(0xC7, 0x86); err != nil {
		return err
	}

	// Memory access control (MADCTL): 0xE8 = landscape, BGR order
	if err := t.writeCommand(cmdMADCTL, 0xE8); err != nil {
		return err
	}

	// Pixel format: 16-bit color (RGB565)
	if err := t.writeCommand(cmdPIXFMT, 0x55); err != nil {
		return err
	}

	// Frame rate control
	if err := t.writeCommand(0xB1, 0x00, 0x18); err != nil {
		return err
	}

	// Display function control
	if err := t.writeCommand(0xB6, 0x08, 0x82, 0x27); err != nil {
		return err
	}

	// Gamma curves (simplified - not using full tables)
	if err := t.writeCommand(0xF2, 0x00); err != nil {
		return err
	}
	if err := t.writeCommand(0x26, 0x01); err != nil {
		return err
	}

	// Display on
	if err := t.writeCommand(cmdDISPON); err != nil {
		return err
	}

	slog.Debug("ILI9341 initialization complete")
	return nil
}

// writeCommand writes a command and optional data bytes to the display.
func (t *TFT) writeCommand(cmd byte, data ...byte) error {
	// DC low = command
	if err := t.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := t.spiDev.Tx([]byte{cmd}, nil); err != nil {
		return err
	}

	if len(data) > 0 {
		if err := t.dc.Out(gpio.High); err != nil {
			return err
		}
		if err := t.spiDev.Tx(data, nil); err != nil {
			return err
		}
	}

	return nil
}

// setWindow sets the drawing window on the display.
func (t *TFT) setWindow(x0, y0, x1, y1 int) error {
	// Column address set
	if err := t.writeCommand(cmdCASet,
		byte(x0>>8), byte(x0),
		byte(x1>>8), byte(x1)); err != nil {
		return err
	}

	// Page address set
	if err := t.writeCommand(cmdPASet,
		byte(y0>>8), byte(y0),
		byte(y1>>8), byte(y1)); err != nil {
		return err
	}

	return nil
}

// Display renders the internal image buffer to the screen.
func (t *TFT) Display() error {
	if err := t.setWindow(0, 0, t.width-1, t.height-1); err != nil {
		return err
	}

	// Prepare RAM write
	if err := t.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := t.spiDev.Tx([]byte{cmdRAMWR}, nil); err != nil {
		return err
	}
	if err := t.dc.Out(gpio.High); err != nil {
		return err
	}

	// Convert RGBA to RGB565 and write in chunks.
	// SPI driver has a max transfer size of 4096 bytes.
	const chunkSize = 4096
	totalBytes := t.width * t.height * 2 // 2 bytes per pixel (RGB565)
	buf := make([]byte, chunkSize)

	pixelIdx := 0
	for offset := 0; offset < totalBytes; offset += chunkSize {
		remaining := totalBytes - offset
		size := chunkSize
		if remaining < chunkSize {
			size = remaining
		}

		for i := 0; i < size; i += 2 {
			x := pixelIdx % t.width
			y := pixelIdx / t.width
			r, g, b, _ := t.img.At(x, y).RGBA()

			r8 := uint8(r >> 8)
			g8 := uint8(g >> 8)
			b8 := uint8(b >> 8)

			// RGB565: 5 bits red, 6 bits green, 5 bits blue, MSB first
			rgb565 := uint16((r8&0xF8))<<8 | uint16((g8&0xFC))<<3 | uint16(b8>>3)
			buf[i] = byte(rgb565 >> 8)
			buf[i+1] = byte(rgb565)
			pixelIdx++
		}

		if err := t.spiDev.Tx(buf[:size], nil); err != nil {
			return err
		}
	}

	return nil
}

// Clear clears the screen to the specified color.
func (t *TFT) Clear(c color.Color) {
	draw.Draw(t.img, t.img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
}

// DrawText draws text at the specified position.
func (t *TFT) DrawText(x, y int, text string, col color.Color) {
	point := fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}

	d := &font.Drawer{
		Dst:  t.img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  point,
	}
	d.DrawString(text)
}

// RenderStatus renders the panel layout: a header with daemon identity and
// network info, then one row per zone with its active config and a volume
// bar per group.
func (t *TFT) RenderStatus(status *Status) error {
	slog.Debug("rendering TFT panel", "zones", len(status.Zones))

	t.Clear(color.Black)

	white := color.RGBA{255, 255, 255, 255}
	yellow := color.RGBA{255, 255, 0, 255}
	red := color.RGBA{255, 0, 0, 255}
	lightGray := color.RGBA{153, 153, 153, 255}

	// Character dimensions (7x13 font)
	const cw = 7
	const ch = 13

	// Line 0: daemon identity
	header := fmt.Sprintf("CarAudio %s", status.Version)
	t.DrawText(1*cw, 1*ch, header, white)
	if !status.Loaded {
		t.DrawText(22*cw, 1*ch, "NO TOPOLOGY", red)
	} else if status.Offline {
		t.DrawText(22*cw, 1*ch, "OFFLINE", yellow)
	} else if status.Mock {
		t.DrawText(22*cw, 1*ch, "MOCK", yellow)
	}

	// Line 1: IP address
	t.DrawText(1*cw, 2*ch+2, fmt.Sprintf("IP:   %s, %s.local", status.IP, status.Hostname), white)

	// Line 2: Disk usage
	diskColor := gradientColor(status.DiskPercent)
	t.DrawText(1*cw, 3*ch+4, "Disk:", white)
	t.DrawText(7*cw, 3*ch+4, fmt.Sprintf("%.1f%%", status.DiskPercent), diskColor)
	t.DrawText(14*cw, 3*ch+4, fmt.Sprintf("%.1f/%.1f GB", status.DiskUsedGB, status.DiskTotalGB), diskColor)

	ys := 4*ch + ch/2
	t.DrawHLine(cw, t.width-2*cw, ys-3, 2, lightGray)

	// One row per zone: name, active config, and its group volume bars.
	if len(status.Zones) > 0 {
		rowHeight := (t.height - ys) / len(status.Zones)
		for i, zone := range status.Zones {
			rowY := ys + i*rowHeight
			label := fmt.Sprintf("%s [%s]", zone.Name, zone.Config)
			t.DrawText(1*cw, rowY+ch, label, yellow)
			t.DrawVolumeBars(zone.Groups, cw, rowY+ch+4, t.width-2*cw, rowHeight-ch-6)
		}
	}

	if err := t.Display(); err != nil {
		return err
	}

	slog.Debug("TFT panel render complete")
	return nil
}

// gradientColor returns a color based on percentage (green->yellow->red).
func gradientColor(percent float64) color.Color {
	if percent < 50 {
		return color.RGBA{0, 255, 0, 255} // Green
	} else if percent < 75 {
		return color.RGBA{255, 255, 0, 255} // Yellow
	}
	return color.RGBA{255, 0, 0, 255} // Red
}

// DrawHLine draws a horizontal line.
func (t *TFT) DrawHLine(x0, x1, y, width int, col color.Color) {
	for i := 0; i < width; i++ {
		for x := x0; x <= x1; x++ {
			t.img.Set(x, y+i, col)
		}
	}
}

// DrawVolumeBars draws one gain bar per volume group. Muted groups fill
// gray, ducked groups fill yellow, everything else green.
func (t *TFT) DrawVolumeBars(groups []GroupInfo, x, y, width, height int) {
	if len(groups) == 0 || height < 24 {
		return
	}

	barWidth := width / len(groups)
	if barWidth > 48 {
		barWidth = 48
	}
	barSpacing := (width - barWidth*len(groups)) / (len(groups) + 1)

	white := color.RGBA{255, 255, 255, 255}
	green := color.RGBA{0, 255, 0, 255}
	yellow := color.RGBA{255, 255, 0, 255}
	gray := color.RGBA{64, 64, 64, 255}

	for i, g := range groups {
		barX := x + barSpacing*(i+1) + barWidth*i
		barHeight := height - 16 // leave room for the label

		// Group label, truncated to the bar width
		label := g.Name
		if maxChars := barWidth / 7; len(label) > maxChars && maxChars > 0 {
			label = label[:maxChars]
		}
		t.DrawText(barX, y+barHeight+12, label, white)

		fillHeight := 0
		if g.MaxIndex > 0 {
			fillHeight = g.GainIndex * barHeight / g.MaxIndex
		}
		if fillHeight > barHeight {
			fillHeight = barHeight
		}

		// Bar outline
		for py := y; py < y+barHeight; py++ {
			t.img.Set(barX, py, white)
			t.img.Set(barX+barWidth-1, py, white)
		}
		for px := barX; px < barX+barWidth; px++ {
			t.img.Set(px, y, white)
			t.img.Set(px, y+barHeight-1, white)
		}

		fillColor := green
		if g.Ducked {
			fillColor = yellow
		}
		if g.Muted {
			fillColor = gray
		}

		for py := 0; py < fillHeight; py++ {
			for px := 1; px < barWidth-1; px++ {
				t.img.Set(barX+px, y+barHeight-1-py, fillColor)
			}
		}
	}
}
