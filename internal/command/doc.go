// Package command строит командную строку для запуска сервиса.
//
// Build не выполняет shell: шаблон parameters разбивается на слова
// по правилам shell (кавычки, экранирование), и только после этого
// в слова подставляется output предыдущего сервиса. Подставленный
// текст никогда не разбивается повторно.
package command
