package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient()
	httpClient, ok := client.(*HTTPClient)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, httpClient.client.Timeout)
}

func TestHTTPClient_DoHTTPRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		requestParam *RequestParam
		handler      http.HandlerFunc
		wantErr      bool
		wantErrMsg   string
		check        func(t *testing.T, p *RequestParam)
	}{
		{
			name:         "成功的GET请求",
			requestParam: &RequestParam{Method: "GET"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"message": "success"}`))
			},
		},
		{
			name: "POST请求带JSON body",
			requestParam: &RequestParam{
				Method: "POST",
				Body:   map[string]interface{}{"key": "value"},
				Header: map[string]string{"Content-Type": "application/json"},
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				var data map[string]interface{}
				require.NoError(t, json.Unmarshal(body, &data))
				assert.Equal(t, "value", data["key"])
				_, _ = w.Write([]byte(`{"received": true}`))
			},
		},
		{
			name: "二进制响应写入 *[]byte",
			requestParam: &RequestParam{
				Method:   "GET",
				Response: &[]byte{},
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
			},
			check: func(t *testing.T, p *RequestParam) {
				raw := p.Response.(*[]byte)
				assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, *raw)
			},
		},
		{
			name:         "服务器返回错误状态码",
			requestParam: &RequestParam{Method: "GET"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error": "server error"}`))
			},
			wantErr:    true,
			wantErrMsg: "HTTP request failed with status 500",
		},
		{
			name: "请求超时",
			requestParam: &RequestParam{
				Method:  "GET",
				Timeout: 100 * time.Millisecond,
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			},
			wantErr:    true,
			wantErrMsg: "context deadline exceeded",
		},
		{
			name:         "请求参数为nil",
			requestParam: nil,
			handler:      func(w http.ResponseWriter, r *http.Request) {},
			wantErr:      true,
			wantErrMsg:   "request param is nil",
		},
		{
			name: "JSON序列化失败",
			requestParam: &RequestParam{
				Method: "POST",
				Body:   make(chan int),
			},
			handler:    func(w http.ResponseWriter, r *http.Request) {},
			wantErr:    true,
			wantErrMsg: "json: unsupported type: chan int",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(tt.handler)
			defer server.Close()
			if tt.requestParam != nil && tt.requestParam.RequestURI == "" {
				tt.requestParam.RequestURI = server.URL
			}

			client := NewHTTPClient()
			err := client.DoHTTPRequest(context.Background(), tt.requestParam)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, tt.requestParam)
			}
		})
	}
}
