package spectral

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/common"
	"github.com/zafarrafii/REPET-Matlab-sub000/algorithms/windowing"
)

// STFT is a short-time Fourier transform with edge zero-padding so that
// overlap-add of the inverse reproduces the input exactly when the window and
// hop satisfy constant overlap-add (periodic Hamming or Hann, hop = W/2).
type STFT struct {
	fft     *FFT
	window  windowing.Window
	hop     int
	colaSum float64
}

// NewSTFT creates an STFT for the given analysis window and hop length
func NewSTFT(window windowing.Window, hop int) (*STFT, error) {
	if window == nil {
		return nil, fmt.Errorf("window cannot be nil")
	}

	size := window.GetSize()
	if size <= 0 || size%2 != 0 {
		return nil, fmt.Errorf("window length must be positive and even: %d", size)
	}

	if hop <= 0 || hop > size {
		return nil, fmt.Errorf("hop length must be in (0, %d]: %d", size, hop)
	}

	colaSum := windowing.COLAGain(window, hop)
	if colaSum <= 0 {
		return nil, fmt.Errorf("window has no overlap-add gain at hop %d", hop)
	}

	return &STFT{
		fft:     NewFFT(),
		window:  window,
		hop:     hop,
		colaSum: colaSum,
	}, nil
}

// WindowLength returns the smallest power of two covering duration seconds at
// sampleRate. 40 ms at 44.1 kHz gives 2048.
func WindowLength(sampleRate int, duration float64) (int, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}

	samples := duration * float64(sampleRate)
	if samples <= 0 || math.IsNaN(samples) || math.IsInf(samples, 0) {
		return 0, fmt.Errorf("window duration must be positive: %v", duration)
	}

	length := common.NextPowerOfTwo(int(math.Ceil(samples)))
	if length < 2 {
		length = 2
	}
	return length, nil
}

// WindowLength returns the analysis window length in samples
func (s *STFT) WindowLength() int {
	return s.window.GetSize()
}

// Hop returns the hop length in samples
func (s *STFT) Hop() int {
	return s.hop
}

// Window returns the analysis window
func (s *STFT) Window() windowing.Window {
	return s.window
}

// COLAGain returns the overlap-add gain Inverse divides by
func (s *STFT) COLAGain() float64 {
	return s.colaSum
}

// NumFrames returns ceil((W - H + numSamples) / H)
func (s *STFT) NumFrames(numSamples int) int {
	w := s.WindowLength()
	return (w - s.hop + numSamples + s.hop - 1) / s.hop
}

// Forward computes the full complex spectrogram indexed [frame][bin]. The
// signal is padded with W-H zeros in front and enough zeros behind to fill
// the last frame.
func (s *STFT) Forward(signal []float64) [][]complex128 {
	w := s.WindowLength()
	numFrames := s.NumFrames(len(signal))
	padding := w - s.hop

	padded := make([]float64, (numFrames-1)*s.hop+w)
	copy(padded[padding:], signal)

	frames := make([][]complex128, numFrames)

	numWorkers := s.getOptimalWorkerCount(numFrames)
	jobs := make(chan int, numFrames)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			frameBuffer := make([]float64, w)
			for frameIdx := range jobs {
				start := frameIdx * s.hop
				copy(frameBuffer, padded[start:start+w])
				// sizes match by construction
				_ = s.window.ApplyInPlace(frameBuffer)
				frames[frameIdx] = s.fft.Compute(frameBuffer)
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)
	wg.Wait()

	return frames
}

// Inverse reconstructs a signal of the given length from a full complex
// spectrogram: real part of each frame's inverse FFT, overlap-add, removal of
// the front padding added by Forward, division by the COLA gain.
func (s *STFT) Inverse(frames [][]complex128, length int) ([]float64, error) {
	w := s.WindowLength()
	for i, frame := range frames {
		if len(frame) != w {
			return nil, fmt.Errorf("frame %d has %d bins, want %d", i, len(frame), w)
		}
	}

	out := make([]float64, max(length, 0))
	if len(frames) == 0 || length <= 0 {
		return out, nil
	}

	total := (len(frames)-1)*s.hop + w
	signal := make([]float64, total)

	for i, frame := range frames {
		start := i * s.hop
		floats.Add(signal[start:start+w], s.fft.ComputeInverseReal(frame))
	}

	padding := w - s.hop
	copy(out, signal[padding:])
	floats.Scale(1/s.colaSum, out)

	return out, nil
}

// getOptimalWorkerCount determines the number of workers based on workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
