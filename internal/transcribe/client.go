// Package transcribe converts voice messages to text with the OpenAI
// Whisper API so spoken accounts flow into the same pipeline as typed ones.
package transcribe

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Transcriber is what the bot depends on; a nil Transcriber means voice
// input is disabled.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

type Client struct {
	client *openai.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		client: openai.NewClient(apiKey),
	}
}

// Transcribe sends the audio stream to Whisper. filename carries the
// extension Whisper uses to pick a decoder (ogg, mp3, wav, m4a).
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	req := openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filename,
		Reader:   audio,
	}
	resp, err := c.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
