// Package cli реализует инструмент командной строки Carpooling.
//
// CLI работает с Carpooling API по HTTP и не импортирует внутренние
// пакеты системы.
//
// Client инкапсулирует запросы, разбор ответов (data, list, error)
// и заголовок X-Passenger-ID:
//
//	client := cli.NewClient("http://localhost:8080", passengerID)
//	page, err := client.ListMyBookings(1, 10)
//
// Output печатает таблицы (text/tabwriter) или JSON с флагом --json.
// Данные идут в stdout, сообщения (Success/Error) в stderr:
// carpooling booking list --json | jq .
//
// Команды:
//   - booking: create, list, cancel (нужен --passenger)
//   - dlq: stats, peek, replay
//
// Группы создаются фабриками (NewBookingCmd, NewDLQCmd), принимающими
// clientFn и outputFn: Client и Output создаются лениво, после разбора
// PersistentFlags.
package cli
