// Package http holds the fiber-facing HTTP plumbing shared by every
// handler: the unified response envelope, error mapping, and the SSE
// writer, grounded on the teacher's common/net/http package.
package http

import "github.com/gofiber/fiber/v2"

// Envelope is the unified non-streaming response shape from spec.md §6.
type Envelope struct {
	Code int    `json:"code"`
	Data any    `json:"data"`
	Msg  string `json:"msg"`
}

// OK writes a 200 envelope with the given payload.
func OK(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(Envelope{Code: 200, Data: data, Msg: "success"})
}

// Created writes a 200-coded envelope (the envelope's `code` field is the
// business code, not the transport status - spec.md §6 defines only
// code=200 meaning success, so creation also reports 200 in the envelope
// while the HTTP status is 201).
func Created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Envelope{Code: 200, Data: data, Msg: "success"})
}

// NoContent writes a 200 envelope with a nil payload.
func NoContent(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Envelope{Code: 200, Data: nil, Msg: "success"})
}
