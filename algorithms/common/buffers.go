package common

import (
	"fmt"
)

// FrameRing holds the most recent frames of a stream in a fixed-capacity
// circular buffer. Frames are addressed chronologically: At(0) is the oldest
// retained frame and At(Len()-1) the newest.
type FrameRing struct {
	frames   [][]float64
	size     int
	writePos int
	count    int
}

// NewFrameRing creates a ring retaining up to size frames
func NewFrameRing(size int) (*FrameRing, error) {
	if size <= 0 {
		return nil, fmt.Errorf("frame ring size must be positive, got %d", size)
	}

	return &FrameRing{
		frames: make([][]float64, size),
		size:   size,
	}, nil
}

// Push stores a copy of frame, overwriting the oldest frame when full
func (fr *FrameRing) Push(frame []float64) {
	slot := fr.frames[fr.writePos]
	if cap(slot) < len(frame) {
		slot = make([]float64, len(frame))
	}
	slot = slot[:len(frame)]
	copy(slot, frame)

	fr.frames[fr.writePos] = slot
	fr.writePos = (fr.writePos + 1) % fr.size
	if fr.count < fr.size {
		fr.count++
	}
}

// At returns the i-th retained frame in chronological order. The returned
// slice is owned by the ring and is overwritten by later pushes.
func (fr *FrameRing) At(i int) []float64 {
	if i < 0 || i >= fr.count {
		return nil
	}

	oldest := (fr.writePos - fr.count + fr.size) % fr.size
	return fr.frames[(oldest+i)%fr.size]
}

// Newest returns the most recently pushed frame
func (fr *FrameRing) Newest() []float64 {
	return fr.At(fr.count - 1)
}

// Len returns the number of retained frames
func (fr *FrameRing) Len() int {
	return fr.count
}

// Cap returns the ring capacity
func (fr *FrameRing) Cap() int {
	return fr.size
}

// IsFull returns true once Cap frames have been pushed
func (fr *FrameRing) IsFull() bool {
	return fr.count == fr.size
}

// Clear forgets all frames
func (fr *FrameRing) Clear() {
	fr.writePos = 0
	fr.count = 0
}

// SlidingWindow cuts a sample stream into overlapping frames of windowSize
// samples advancing by hopSize. The first frame starts at the first sample.
type SlidingWindow struct {
	buffer     []float64
	windowSize int
	hopSize    int
	writePos   int
	emitted    int
}

// NewSlidingWindow creates a new sliding window
func NewSlidingWindow(windowSize, hopSize int) (*SlidingWindow, error) {
	if windowSize <= 0 || hopSize <= 0 || hopSize > windowSize {
		return nil, fmt.Errorf("invalid sliding window: size %d, hop %d", windowSize, hopSize)
	}

	return &SlidingWindow{
		buffer:     make([]float64, windowSize),
		windowSize: windowSize,
		hopSize:    hopSize,
	}, nil
}

// AddSamples appends samples and returns every frame completed by them
func (sw *SlidingWindow) AddSamples(samples []float64) [][]float64 {
	var frames [][]float64

	for _, sample := range samples {
		sw.buffer[sw.writePos] = sample
		sw.writePos++

		if sw.writePos < sw.windowSize {
			continue
		}

		frame := make([]float64, sw.windowSize)
		copy(frame, sw.buffer)
		frames = append(frames, frame)
		sw.emitted++

		// Keep the overlap for the next frame
		overlap := sw.windowSize - sw.hopSize
		copy(sw.buffer, sw.buffer[sw.hopSize:])
		sw.writePos = overlap
	}

	return frames
}

// Pending returns the number of buffered samples not yet part of a frame
// boundary, i.e. samples written since the start of the next frame.
func (sw *SlidingWindow) Pending() int {
	return sw.writePos
}

// FramesEmitted returns the number of frames produced so far
func (sw *SlidingWindow) FramesEmitted() int {
	return sw.emitted
}

// Reset clears the sliding window
func (sw *SlidingWindow) Reset() {
	sw.writePos = 0
	sw.emitted = 0
	for i := range sw.buffer {
		sw.buffer[i] = 0.0
	}
}

// WindowSize returns the window size
func (sw *SlidingWindow) WindowSize() int {
	return sw.windowSize
}

// HopSize returns the hop size
func (sw *SlidingWindow) HopSize() int {
	return sw.hopSize
}

// OverlapAddBuffer accumulates overlapping synthesis frames and releases
// samples once no later frame can contribute to them.
type OverlapAddBuffer struct {
	buffer     []float64
	windowSize int
	hopSize    int
	overlap    int
}

// NewOverlapAddBuffer creates a new overlap-add buffer
func NewOverlapAddBuffer(windowSize, hopSize int) (*OverlapAddBuffer, error) {
	if windowSize <= 0 || hopSize <= 0 || hopSize > windowSize {
		return nil, fmt.Errorf("invalid overlap-add buffer: size %d, hop %d", windowSize, hopSize)
	}

	return &OverlapAddBuffer{
		buffer:     make([]float64, windowSize),
		windowSize: windowSize,
		hopSize:    hopSize,
		overlap:    windowSize - hopSize,
	}, nil
}

// AddFrame adds a frame and returns the hopSize samples it completes
func (oab *OverlapAddBuffer) AddFrame(frame []float64) ([]float64, error) {
	if len(frame) != oab.windowSize {
		return nil, fmt.Errorf("frame size (%d) doesn't match window size (%d)", len(frame), oab.windowSize)
	}

	for i := range frame {
		oab.buffer[i] += frame[i]
	}

	output := make([]float64, oab.hopSize)
	copy(output, oab.buffer[:oab.hopSize])

	copy(oab.buffer, oab.buffer[oab.hopSize:])
	for i := oab.overlap; i < oab.windowSize; i++ {
		oab.buffer[i] = 0.0
	}

	return output, nil
}

// Drain returns the windowSize-hopSize samples still accumulating and
// clears the buffer
func (oab *OverlapAddBuffer) Drain() []float64 {
	output := make([]float64, oab.overlap)
	copy(output, oab.buffer[:oab.overlap])
	oab.Reset()
	return output
}

// Reset clears the buffer
func (oab *OverlapAddBuffer) Reset() {
	for i := range oab.buffer {
		oab.buffer[i] = 0.0
	}
}
