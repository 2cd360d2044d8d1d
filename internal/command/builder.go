package command

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/shaiso/relay/internal/domain"
)

// Placeholder — токен в parameters, заменяемый на output предыдущего сервиса.
const Placeholder = "$$"

// InTreeMarker — префикс program для скриптов внутри директории сервиса.
const InTreeMarker = "./"

// Ошибки построения команды.
var (
	// ErrEmptyProgram — program пустой.
	ErrEmptyProgram = errors.New("service program is empty")

	// ErrInvalidTemplate — program или parameters не разбираются (например, незакрытая кавычка).
	ErrInvalidTemplate = errors.New("invalid command template")
)

// Command — готовая к запуску команда.
type Command struct {
	// Path — исполняемый файл.
	Path string

	// Args — аргументы (без Path).
	Args []string
}

// Argv возвращает полный вектор аргументов: Path, затем Args.
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

// String возвращает команду для логов.
func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Build строит команду для svc.
//
// servicesDir — корень директорий сервисов; используется, если program
// начинается с "./". upstream — stdout предыдущего сервиса (пустой для первого).
func Build(servicesDir string, svc *domain.Service, upstream []byte) (Command, error) {
	path, programArgs, err := resolveProgram(servicesDir, svc)
	if err != nil {
		return Command{}, err
	}

	params, err := expandParameters(svc.Parameters, string(upstream))
	if err != nil {
		return Command{}, fmt.Errorf("service %s: %w", svc.Name, err)
	}

	return Command{
		Path: path,
		Args: append(programArgs, params...),
	}, nil
}

// resolveProgram возвращает путь к исполняемому файлу и аргументы,
// записанные прямо в program (например, "python3 -u").
func resolveProgram(servicesDir string, svc *domain.Service) (string, []string, error) {
	program := strings.TrimSpace(svc.Program)
	inTree := strings.HasPrefix(program, InTreeMarker)
	if inTree {
		program = strings.TrimPrefix(program, InTreeMarker)
	}

	words, err := shellquote.Split(program)
	if err != nil {
		return "", nil, fmt.Errorf("%w: service %s program: %v", ErrInvalidTemplate, svc.Name, err)
	}
	if len(words) == 0 {
		return "", nil, fmt.Errorf("%w: service %s", ErrEmptyProgram, svc.Name)
	}

	path := words[0]
	if inTree {
		// Путь собирается без повторного разбиения,
		// поэтому пробелы в имени сервиса не требуют экранирования.
		path = filepath.Join(servicesDir, svc.Name, path)
	}

	return path, words[1:], nil
}

// expandParameters разбивает шаблон на слова и подставляет upstream
// вместо каждого вхождения Placeholder.
func expandParameters(template, upstream string) ([]string, error) {
	words, err := shellquote.Split(template)
	if err != nil {
		return nil, fmt.Errorf("%w: parameters: %v", ErrInvalidTemplate, err)
	}

	args := make([]string, 0, len(words))
	for _, w := range words {
		if !strings.Contains(w, Placeholder) {
			args = append(args, w)
			continue
		}
		// Пустой output на месте отдельного "$$" не даёт пустого аргумента.
		if w == Placeholder && upstream == "" {
			continue
		}
		args = append(args, strings.ReplaceAll(w, Placeholder, upstream))
	}

	return args, nil
}
