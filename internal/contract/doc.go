// Package contract проверяет данные на границах сервисов.
//
// Каждый сервис пишет в stdout JSON вида {"data": <value>}.
// Verifier извлекает <value> и сверяет его с контрактом сервиса
// (тип и, для времени, формат) для нужного направления.
//
// Результат — Result: OK и Reason. Решение о прерывании flow
// принимается только по OK; Reason нужен для логов и метрик.
package contract
