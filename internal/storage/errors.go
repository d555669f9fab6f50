package storage

import (
	"errors"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
)

// IsNoSuchKey 报告 err 是否表示对象不存在。
func IsNoSuchKey(err error) bool {
	return hasCode(err, "NoSuchKey", "NotFound") ||
		statusIs(err, http.StatusNotFound) && !hasCode(err, "NoSuchBucket") ||
		messageHas(err, "nosuchkey", "specified key does not exist")
}

// IsNoSuchBucket 报告 err 是否表示 Bucket 不存在。
func IsNoSuchBucket(err error) bool {
	return hasCode(err, "NoSuchBucket") ||
		messageHas(err, "nosuchbucket", "specified bucket does not exist")
}

func asResponse(err error) (minio.ErrorResponse, bool) {
	var resp minio.ErrorResponse
	if err == nil || !errors.As(err, &resp) {
		return minio.ErrorResponse{}, false
	}
	return resp, true
}

func hasCode(err error, codes ...string) bool {
	resp, ok := asResponse(err)
	if !ok {
		return false
	}
	for _, code := range codes {
		if strings.EqualFold(strings.TrimSpace(resp.Code), code) {
			return true
		}
	}
	return false
}

func statusIs(err error, status int) bool {
	resp, ok := asResponse(err)
	return ok && resp.StatusCode == status
}

// messageHas 兜底处理被网关或代理包装成字符串的错误。
func messageHas(err error, needles ...string) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
