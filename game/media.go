package game

import "errors"

const (
	mediaIdLength  = 8
	maxAltLength   = 200
	maxAnswerText  = 200
	maxTitleLength = 100
)

// Image is a reference to an uploaded image with alt text for accessibility.
type Image struct {
	Id  string `json:"id"`
	Alt string `json:"alt"`
}

// Media is any kind of media attached to a slide. Currently only images.
type Media struct {
	Image *Image `json:"image,omitempty"`
}

func (m *Media) validate() error {
	if m == nil {
		return nil
	}
	if m.Image == nil {
		return errors.New("media must carry an image")
	}
	if len(m.Image.Id) != mediaIdLength {
		return errors.New("image id has the wrong length")
	}
	if len(m.Image.Alt) > maxAltLength {
		return errors.New("image alt text is too long")
	}
	return nil
}

// TextOrMedia is an answer body: either plain text or an attached media.
type TextOrMedia struct {
	Text  string `json:"text,omitempty"`
	Media *Media `json:"media,omitempty"`
}

func (t TextOrMedia) validate() error {
	if len(t.Text) > maxAnswerText {
		return errors.New("answer text is too long")
	}
	return t.Media.validate()
}
