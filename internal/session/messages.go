package session

import (
	"errors"

	"github.com/fleveque/ecosort/internal/capture"
	"github.com/fleveque/ecosort/internal/llm"
)

// MessageKey names one user-visible string.
type MessageKey string

const (
	MsgAnalysisFailed    MessageKey = "analysis_failed"
	MsgCameraUnavailable MessageKey = "camera_unavailable"
	MsgReadFailure       MessageKey = "read_failure"
	MsgInvalidAction     MessageKey = "invalid_action"
	MsgAnalyzing         MessageKey = "analyzing"
	MsgPrompt            MessageKey = "prompt"
	MsgTakePhoto         MessageKey = "take_photo"
	MsgUploadPhoto       MessageKey = "upload_photo"
	MsgWhy               MessageKey = "why"
	MsgHowToDispose      MessageKey = "how_to_dispose"
	MsgScanAnother       MessageKey = "scan_another"
	MsgConfidence        MessageKey = "confidence"
)

// DefaultLanguage is Vietnamese.
const DefaultLanguage = "vi"

var catalog = map[string]map[MessageKey]string{
	"vi": {
		MsgAnalysisFailed:    "Có lỗi xảy ra khi phân tích ảnh. Vui lòng thử lại.",
		MsgCameraUnavailable: "Không thể truy cập camera. Vui lòng kiểm tra quyền truy cập.",
		MsgReadFailure:       "Không thể đọc tệp ảnh. Vui lòng chọn ảnh khác.",
		MsgInvalidAction:     "Không thể thực hiện thao tác này lúc này.",
		MsgAnalyzing:         "Đang phân tích...",
		MsgPrompt:            "Chụp hoặc tải ảnh rác lên để AI phân loại giúp bạn",
		MsgTakePhoto:         "Chụp ảnh ngay",
		MsgUploadPhoto:       "Tải ảnh từ thư viện",
		MsgWhy:               "Tại sao?",
		MsgHowToDispose:      "Hướng dẫn xử lý",
		MsgScanAnother:       "Quét rác khác",
		MsgConfidence:        "tin cậy",
	},
	"en": {
		MsgAnalysisFailed:    "Something went wrong while analysing the photo. Please try again.",
		MsgCameraUnavailable: "Cannot access the camera. Please check the permissions.",
		MsgReadFailure:       "Cannot read the image file. Please choose another photo.",
		MsgInvalidAction:     "That action is not available right now.",
		MsgAnalyzing:         "Analysing...",
		MsgPrompt:            "Take or upload a photo of your waste and the AI will sort it for you",
		MsgTakePhoto:         "Take a photo",
		MsgUploadPhoto:       "Upload from library",
		MsgWhy:               "Why?",
		MsgHowToDispose:      "How to dispose",
		MsgScanAnother:       "Scan another item",
		MsgConfidence:        "confidence",
	},
}

// Text returns the string for key in lang, falling back to the default language.
func Text(lang string, key MessageKey) string {
	if m, ok := catalog[lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return catalog[DefaultLanguage][key]
}

// MessageKeyFor maps any error to its user-visible message. Every
// classification error collapses into one generic message.
func MessageKeyFor(err error) MessageKey {
	switch {
	case errors.Is(err, capture.ErrCameraUnavailable):
		return MsgCameraUnavailable
	case errors.Is(err, capture.ErrReadFailure), errors.Is(err, llm.ErrInvalidImage):
		return MsgReadFailure
	case errors.Is(err, ErrInvalidTransition):
		return MsgInvalidAction
	default:
		return MsgAnalysisFailed
	}
}

// Message is the localized user-visible text for err.
func Message(err error, lang string) string {
	return Text(lang, MessageKeyFor(err))
}
