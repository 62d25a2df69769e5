package common

import (
	"errors"
)

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		if e.Message != "" {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap 返回原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is 以錯誤代碼比對，讓 errors.Is(err, ErrTransportFault) 之類的判斷成立
func (e *CustomError) Is(target error) bool {
	t, ok := target.(*CustomError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf 取出錯誤代碼，非 CustomError 時返回空字串
func CodeOf(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// ValidationError 表示驗證錯誤
type ValidationError struct {
	message string
}

// Error 實現 error 介面
func (e *ValidationError) Error() string {
	return e.message
}

// NewValidationError 創建新的驗證錯誤
func NewValidationError(message string) error {
	return &ValidationError{
		message: message,
	}
}

// IsValidationError 檢查是否為驗證錯誤
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// 預定義錯誤代碼
const (
	ErrCodeAdmissionDenied      = "ADMISSION_DENIED"      // 超過速率上限，稍後重試
	ErrCodeValidation           = "VALIDATION_ERROR"      // 食材輸入有誤，使用者修正
	ErrCodeProviderEmpty        = "PROVIDER_EMPTY"        // 模型回傳空內容
	ErrCodeProviderFailure      = "PROVIDER_FAILURE"      // 模型呼叫失敗
	ErrCodePresentationOverflow = "PRESENTATION_OVERFLOW" // 訊息超出平台上限，改為分段
	ErrCodeTransportFault       = "TRANSPORT_FAULT"       // 與聊天平台斷線
	ErrCodeConfigurationFatal   = "CONFIGURATION_FATAL"   // 缺少必要設定
)

// 預定義錯誤
var (
	ErrPresentationOverflow = NewError(ErrCodePresentationOverflow, "訊息過長", nil)
	ErrTransportFault       = NewError(ErrCodeTransportFault, "聊天平台連線錯誤", nil)
	ErrConfigurationFatal   = NewError(ErrCodeConfigurationFatal, "缺少必要設定", nil)
)
