package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jacl-coder/ElementalCard-Server/internal/apperr"
	"go.uber.org/zap"
)

// APIResponse 统一响应结构
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    apperr.Code `json:"code,omitempty"`
	Field   string      `json:"field,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// responder 各处理器共用的响应写入
type responder struct {
	log *zap.Logger
}

// sendSuccessResponse 发送成功响应
func (h responder) sendSuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// sendErrorResponse 发送错误响应
func (h responder) sendErrorResponse(w http.ResponseWriter, message string, code apperr.Code) {
	h.writeJSON(w, code.HTTPStatus(), APIResponse{
		Success: false,
		Message: message,
		Code:    code,
	})
}

// sendError 根据错误码发送错误响应，内部错误不向客户端暴露细节
func (h responder) sendError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.log.Error("请求处理失败",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		h.sendErrorResponse(w, "服务器内部错误", apperr.CodeInternal)
		return
	}

	message := appErr.Message
	if message == "" {
		message = string(appErr.Code)
	}
	h.writeJSON(w, appErr.Code.HTTPStatus(), APIResponse{
		Success: false,
		Message: message,
		Code:    appErr.Code,
		Field:   appErr.Field,
	})
}

func (h responder) writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Warn("编码响应失败", zap.Error(err))
	}
}

// decodeJSON 解析请求体
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid("body", "无效的请求格式: %v", err)
	}
	return nil
}
