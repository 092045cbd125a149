package yt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"Nocturne/config"
	"Nocturne/dsp"
	"Nocturne/session"
	"Nocturne/track"
	"Nocturne/utils"

	"github.com/kkdai/youtube/v2"
	"github.com/redis/go-redis/v9"
)

const frameSamples = dsp.FrameSize * dsp.Channels

// Provider turns resolved tracks into PCM frame streams. Audio is
// downloaded once into the cache directory and transcoded through ffmpeg;
// live streams are piped straight through without touching the cache.
type Provider struct {
	rdb      *redis.Client
	client   youtube.Client
	audioTTL time.Duration
}

func NewProvider(rdb *redis.Client) *Provider {
	return &Provider{
		rdb:      rdb,
		audioTTL: config.Seconds("cache.audio"),
	}
}

// Open prepares the frame stream for a track. The presence key written
// here is what keeps the cached file alive across sweeper passes.
func (p *Provider) Open(ctx context.Context, t *track.Track) (session.FrameReader, error) {
	if t.Stream {
		url, err := streamURL(ctx, t.URI)
		if err != nil {
			return nil, err
		}
		return newPCMReader(url)
	}

	os.MkdirAll("cache", 0755)
	p.rdb.Set(ctx, "audio:"+t.ID, true, p.audioTTL)

	filename := utils.AudioFile(t.ID)
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		if err := p.download(ctx, t.ID, filename); err != nil {
			return nil, err
		}
	}
	return newPCMReader(filename)
}

// download fetches the audio for a video, preferring the YouTube client
// and falling back to yt-dlp when it cannot serve the format.
func (p *Provider) download(ctx context.Context, videoID, filename string) error {
	if err := p.clientDownload(ctx, videoID, filename); err == nil {
		return nil
	}

	stderr := &bytes.Buffer{}
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"-f", "bestaudio[ext=opus]/bestaudio",
		"-o", filename,
		watchURL(videoID),
	)
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return errors.New(stderr.String())
	}
	return nil
}

func (p *Provider) clientDownload(ctx context.Context, videoID, filename string) error {
	video, err := p.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return err
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return errors.New("no audio formats available")
	}

	stream, _, err := p.client.GetStreamContext(ctx, video, &formats[0])
	if err != nil {
		return err
	}
	defer stream.Close()

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, stream); err != nil {
		os.Remove(filename)
		return err
	}
	return nil
}

// streamURL asks yt-dlp for the direct media URL of a live stream.
func streamURL(ctx context.Context, uri string) (string, error) {
	out, err := exec.CommandContext(ctx, "yt-dlp", "-g", "-f", "bestaudio/best", uri).Output()
	if err != nil {
		return "", err
	}
	url := strings.TrimSpace(string(out))
	if url == "" {
		return "", errors.New("no stream url")
	}
	return url, nil
}

// pcmReader wraps an ffmpeg transcode into fixed 20ms frames.
type pcmReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	buf    []byte
	carry  []int16
}

func newPCMReader(input string) (*pcmReader, error) {
	cmd := exec.Command("ffmpeg",
		"-i", input,
		"-f", "s16le",
		"-ar", fmt.Sprint(dsp.SampleRate),
		"-ac", fmt.Sprint(dsp.Channels),
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &pcmReader{
		cmd:    cmd,
		stdout: stdout,
		buf:    make([]byte, frameSamples*2),
	}, nil
}

// ReadFrame blocks until a full frame of samples is available. A trailing
// partial frame at end of stream is dropped.
func (r *pcmReader) ReadFrame() ([]int16, error) {
	for len(r.carry) < frameSamples {
		n, err := r.stdout.Read(r.buf)
		for i := 0; i+1 < n; i += 2 {
			sample := int16(r.buf[i]) | int16(r.buf[i+1])<<8
			r.carry = append(r.carry, sample)
		}
		if err != nil {
			return nil, err
		}
	}

	frame := make([]int16, frameSamples)
	copy(frame, r.carry)
	r.carry = r.carry[frameSamples:]
	return frame, nil
}

func (r *pcmReader) Close() error {
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	r.cmd.Wait()
	return r.stdout.Close()
}
