// Package mq связывает relay с RabbitMQ.
//
// Брокер опционален: без RABBITMQ_URL relay работает только по расписанию.
//
// Структура:
//   - connection.go — соединение с автоматическим переподключением
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация flow.completed и flow.trigger
//   - consumer.go   — потребление сообщений с ack/nack
//   - trigger.go    — обработчик flow.trigger (внеочередной цикл)
//
// Типы сообщений:
//   - flow.completed — результат flow (run_id, статус, упавший сервис, длительность)
//   - flow.trigger   — запрос немедленного цикла
//
// Exchanges:
//   - relay.flows — события flows
//   - relay.dlq   — dead letter queue для отклонённых trigger-сообщений
package mq
