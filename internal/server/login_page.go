package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const loginPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sign in · Payforge</title>
    <link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>⬡</text></svg>">
    <link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600&display=swap" rel="stylesheet">
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --bg: #09090b; --bg-subtle: #18181b; --border: #27272a;
            --text: #fafafa; --text-secondary: #a1a1aa;
            --accent: #6366f1; --err: #ef4444;
        }
        body {
            font-family: 'Inter', -apple-system, sans-serif;
            background: var(--bg); color: var(--text);
            min-height: 100vh; font-size: 14px;
            display: flex; align-items: center; justify-content: center;
        }
        .card {
            width: 360px; max-width: calc(100vw - 32px);
            background: var(--bg-subtle); border: 1px solid var(--border);
            border-radius: 12px; padding: 32px;
        }
        .brand { display: flex; align-items: center; gap: 10px; margin-bottom: 24px; }
        .brand-mark { width: 24px; height: 24px; background: var(--accent); border-radius: 6px; }
        .brand-text { font-weight: 600; font-size: 15px; }
        label { display: block; color: var(--text-secondary); font-size: 13px; margin-bottom: 6px; }
        input {
            width: 100%; background: var(--bg); border: 1px solid var(--border);
            border-radius: 8px; padding: 10px 12px; color: var(--text);
            font-size: 14px; margin-bottom: 16px;
        }
        input:focus { outline: none; border-color: var(--accent); }
        button {
            width: 100%; background: var(--accent); border: none; color: #fff;
            border-radius: 8px; padding: 12px; font-size: 14px; font-weight: 500;
            cursor: pointer;
        }
        button:disabled { opacity: 0.5; }
        .error {
            background: rgba(239, 68, 68, 0.1); border: 1px solid rgba(239, 68, 68, 0.3);
            color: var(--err); border-radius: 8px; padding: 10px 14px;
            font-size: 13px; margin-bottom: 16px; display: none;
        }
    </style>
</head>
<body>
    <div class="card">
        <div class="brand"><div class="brand-mark"></div><span class="brand-text">Payforge Console</span></div>
        <div class="error" id="error"></div>
        <form id="form">
            <label for="email">Email</label>
            <input id="email" type="email" autocomplete="username" required>
            <label for="password">Password</label>
            <input id="password" type="password" autocomplete="current-password" required>
            <button type="submit" id="submit">Sign in</button>
        </form>
    </div>
    <script>
        document.getElementById('form').addEventListener('submit', e => {
            e.preventDefault();
            const btn = document.getElementById('submit');
            const err = document.getElementById('error');
            btn.disabled = true;
            err.style.display = 'none';
            fetch('/login', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({
                    email: document.getElementById('email').value,
                    password: document.getElementById('password').value,
                }),
            }).then(r => r.json().then(data => ({ok: r.ok, data})))
            .then(({ok, data}) => {
                if (ok) { location.href = '/console'; return; }
                err.textContent = data.message || 'Sign in failed';
                err.style.display = 'block';
                btn.disabled = false;
            }).catch(() => {
                err.textContent = 'Could not reach the server';
                err.style.display = 'block';
                btn.disabled = false;
            });
        });
    </script>
</body>
</html>`

func (s *Server) loginPageHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, loginPageHTML)
}
