package model

type action int

const (
	DefaultAction action = iota
	ExpectingIncomeParams
	ExpectingSellParams
)

type Session struct {
	Action action
}
