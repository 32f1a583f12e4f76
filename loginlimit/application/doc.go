// Package application contém os casos de uso do limitador de login.
//
// Ele depende apenas do pacote domain e não conhece net/http nem Redis.
//   - Engine: a política (janela deslizante, atraso progressivo, bloqueio)
//   - Service: a fachada consumida pela camada HTTP, com fail-open quando o
//     store compartilhado está fora
package application
