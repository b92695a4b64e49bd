package console

import (
	"github.com/labstack/echo/v4"
)

type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func writeJSON(c echo.Context, status int, resp Response) error {
	return c.JSON(status, resp)
}

func OK(data any) Response {
	return Response{Code: 0, Msg: "success", Data: data}
}

func Err(msg string) Response {
	return Response{Code: 1, Msg: msg}
}
