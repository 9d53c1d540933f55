// Command ndscore is the headless frame-runner entry point: load a
// cartridge (and optionally BIOS/firmware/save images), run it for a fixed
// number of frames, and report what happened.
//
// Usage mirrors _examples/IntuitionAmiga-IntuitionEngine/main.go's
// positional-argument style ("./intuition_engine [-ie32|-m68k] filename")
// for the ROM argument, with the ancillary image paths and frame count
// taken from flag-package options.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/intuitionamiga/ndscore/internal/core"
	"github.com/intuitionamiga/ndscore/internal/corelog"
	"github.com/intuitionamiga/ndscore/internal/gpu2d"
)

func main() {
	var (
		bios9Path  = flag.String("bios9", "", "ARM9 BIOS image (4 KiB); omit for direct boot")
		bios7Path  = flag.String("bios7", "", "ARM7 BIOS image (16 KiB); omit for direct boot")
		fwPath     = flag.String("firmware", "", "firmware image")
		savePath   = flag.String("save", "", "save/backup memory image")
		frameCount = flag.Int("frames", 60, "number of frames to run")
		outPPM     = flag.String("out", "", "write the final top-screen frame to this PPM file")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] romfile\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	romPath := flag.Arg(0)

	c := core.Init(core.Config{
		Log: func(level corelog.Level, msg string) { fmt.Fprintf(os.Stderr, "[%s] %s\n", level, msg) },
	})
	defer c.Close()

	if *bios9Path != "" {
		data, err := os.ReadFile(*bios9Path)
		if err != nil {
			fatalf("read bios9: %v", err)
		}
		if err := c.LoadBIOS9(data); err != nil {
			fatalf("load bios9: %v", err)
		}
	}
	if *bios7Path != "" {
		data, err := os.ReadFile(*bios7Path)
		if err != nil {
			fatalf("read bios7: %v", err)
		}
		if err := c.LoadBIOS7(data); err != nil {
			fatalf("load bios7: %v", err)
		}
	}

	romData, err := os.ReadFile(romPath)
	if err != nil {
		fatalf("read rom: %v", err)
	}
	if err := c.LoadROM(romData); err != nil {
		fatalf("load rom: %v", err)
	}

	if *fwPath != "" {
		data, err := os.ReadFile(*fwPath)
		if err != nil {
			fatalf("read firmware: %v", err)
		}
		if err := c.LoadFirmware(data); err != nil {
			fatalf("load firmware: %v", err)
		}
	}
	if *savePath != "" {
		data, err := os.ReadFile(*savePath)
		if err != nil {
			fatalf("read save: %v", err)
		}
		if err := c.LoadSave(data); err != nil {
			fatalf("load save: %v", err)
		}
	}

	c.SetSaveDirtyCallback(func(offset, length uint32) {
		if *savePath == "" {
			return
		}
		fmt.Fprintf(os.Stderr, "save dirty: offset=%#x length=%d\n", offset, length)
	})

	c.Reset()

	var last core.FrameResult
	var audioSamples int
	for i := 0; i < *frameCount; i++ {
		last = c.RunFrame()
		audioSamples += len(last.AudioLeft)
	}

	fmt.Printf("ran %d frames, %d audio sample pairs produced\n", *frameCount, audioSamples)

	if *outPPM != "" {
		if err := writePPM(*outPPM, &last.FramebufferTop); err != nil {
			fatalf("write ppm: %v", err)
		}
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ndscore: "+format+"\n", args...)
	os.Exit(1)
}

// writePPM encodes a BGR555-packed framebuffer as a binary PPM (P6), the
// simplest format that needs nothing beyond the standard library - PNG
// encoding with palette/icon handling lives in cmd/bannerdump instead.
func writePPM(path string, fb *[gpu2d.ScreenWidth * gpu2d.ScreenHeight]uint16) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "P6\n%d %d\n255\n", gpu2d.ScreenWidth, gpu2d.ScreenHeight)
	for _, px := range fb {
		r, g, b := rgb555To888(px)
		w.WriteByte(r)
		w.WriteByte(g)
		w.WriteByte(b)
	}
	return w.Flush()
}

func rgb555To888(px uint16) (r, g, b byte) {
	scale := func(v uint16) byte { return byte(v * 255 / 31) }
	return scale(px & 0x1F), scale((px >> 5) & 0x1F), scale((px >> 10) & 0x1F)
}
