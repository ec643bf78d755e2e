// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/attendtrack/internal/course"
	"github.com/hitoshi/attendtrack/internal/model"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

// okResponse はデータを伴わない成功レスポンス。
type okResponse struct {
	OK bool `json:"ok"`
}

// dataResponse はデータを伴う成功レスポンス。
type dataResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

// userResponse はログインユーザー情報を伴うレスポンス。
type userResponse struct {
	OK   bool              `json:"ok"`
	User *model.PublicUser `json:"user,omitempty"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func writeData(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, dataResponse{OK: true, Data: data})
}

// decodeFields はリクエストボディをJSONオブジェクトとして読み込む。
// ボディが空の場合は空のオブジェクトとして扱う。
func decodeFields(w http.ResponseWriter, r *http.Request) (course.Fields, error) {
	fields := course.Fields{}
	if r.Body == nil {
		return fields, nil
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return course.Fields{}, nil
		}
		return nil, model.NewInvalidRequestError()
	}
	if fields == nil {
		// "null" が送られた場合
		return nil, model.NewInvalidRequestError()
	}
	return fields, nil
}
