// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package errors

import (
	"errors"
	"fmt"
)

type (
	// Service errors are returned by the state store itself.
	Service string

	// Payload errors indicate a malformed or unexpected payload.
	Payload string

	// Argument errors indicate an invalid argument.
	Argument struct {
		Name  string
		Value any
	}
)

var (
	ErrService  = errors.New("service error")
	ErrPayload  = errors.New("malformed payload")
	ErrArgument = errors.New("invalid argument")
)

const (
	SyntaxError            Service = "syntax error"
	UnknownCommand         Service = "unknown command"
	WrongNumberOfArguments Service = "wrong number of arguments"
	KeyLengthZero          Service = "the key length is zero"
	MissingClientID        Service = "the request does not identify the invoking client"
)

func (e Service) Error() string {
	return fmt.Sprintf("%s: %s", ErrService, string(e))
}

func (Service) Unwrap() error {
	return ErrService
}

func (e Payload) Error() string {
	return fmt.Sprintf("%s: %s", ErrPayload, string(e))
}

func (Payload) Unwrap() error {
	return ErrPayload
}

func (e Argument) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", ErrArgument, e.Name)
	}
	return fmt.Sprintf("%s: %s=%v", ErrArgument, e.Name, e.Value)
}

func (Argument) Unwrap() error {
	return ErrArgument
}
