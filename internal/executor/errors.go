package executor

import "errors"

// Причины провала flow.
var (
	// ErrFlowNotFound — flow нет в конфигурации.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrEmptyFlow — flow не содержит сервисов.
	ErrEmptyFlow = errors.New("flow has no services")

	// ErrServiceNotReady — сервис flow отсутствует или не прошёл загрузку.
	ErrServiceNotReady = errors.New("service not loaded")

	// ErrInboundContract — входные данные не соответствуют контракту сервиса.
	ErrInboundContract = errors.New("inbound data contract violated")

	// ErrOutboundContract — stdout сервиса не соответствует контракту.
	ErrOutboundContract = errors.New("outbound data contract violated")

	// ErrCommandBuild — не удалось построить командную строку.
	ErrCommandBuild = errors.New("build command failed")

	// ErrLaunch — процесс не запустился (нет файла, нет прав и т.п.).
	ErrLaunch = errors.New("service launch failed")

	// ErrNonZeroExit — процесс завершился с ненулевым кодом.
	ErrNonZeroExit = errors.New("service exited with non-zero status")

	// ErrServiceTimeout — процесс не завершился за отведённое время и был убит.
	ErrServiceTimeout = errors.New("service timed out")
)
