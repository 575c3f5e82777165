package api

import "net/http"

// handleFrontend 返回内置的对话页面。页面只负责展示消息与两个决定按钮，
// 所有逻辑都在服务端。
func (s *Server) handleFrontend(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(frontendHTML))
}

const frontendHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Human-in-the-Loop Assistant</title>
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
body {
  font-family: 'Segoe UI', Tahoma, sans-serif;
  background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
  min-height: 100vh; display: flex; align-items: center; justify-content: center; padding: 20px;
}
.container {
  background: white; border-radius: 16px; box-shadow: 0 20px 40px rgba(0,0,0,0.1);
  width: 100%; max-width: 800px; height: 600px; display: flex; flex-direction: column; overflow: hidden;
}
.header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px; text-align: center; }
.messages { flex: 1; overflow-y: auto; padding: 20px; background: #f8f9fa; }
.message { margin-bottom: 14px; padding: 12px 16px; border-radius: 16px; max-width: 80%; word-wrap: break-word; }
.user-message { background: #667eea; color: white; margin-left: auto; text-align: right; }
.agent-message { background: white; color: #333; border: 1px solid #e0e0e0; margin-right: auto; white-space: pre-wrap; }
.approval-request { background: #fff3cd; color: #856404; border: 1px solid #ffeaa7; margin: 0 auto; text-align: center; padding: 14px; max-width: 90%; }
.approve-btn, .deny-btn { padding: 10px 20px; margin: 8px 5px 0; border: none; border-radius: 8px; cursor: pointer; font-weight: bold; color: white; }
.approve-btn { background: #28a745; }
.deny-btn { background: #dc3545; }
.input-container { padding: 16px; background: white; border-top: 1px solid #e0e0e0; display: flex; gap: 10px; }
.message-input { flex: 1; padding: 12px 16px; border: 2px solid #e0e0e0; border-radius: 24px; font-size: 16px; outline: none; }
.send-btn { padding: 12px 24px; background: #667eea; color: white; border: none; border-radius: 24px; cursor: pointer; font-weight: bold; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>Human-in-the-Loop Assistant</h1>
    <p>Sensitive actions need your approval; math runs automatically</p>
  </div>
  <div class="messages" id="messages">
    <div class="message agent-message">Hello! Try "What is 25 times 48?" (runs automatically) or "search for today's news" (asks for approval).</div>
  </div>
  <div class="input-container">
    <input type="text" id="messageInput" class="message-input" placeholder="Type your message here..." maxlength="500">
    <button id="sendBtn" class="send-btn">Send</button>
  </div>
</div>
<script>
let currentSessionId = null;
const messagesDiv = document.getElementById('messages');
const messageInput = document.getElementById('messageInput');
const sendBtn = document.getElementById('sendBtn');

function addMessage(content, className) {
  const div = document.createElement('div');
  div.className = 'message ' + className;
  div.textContent = content;
  messagesDiv.appendChild(div);
  messagesDiv.scrollTop = messagesDiv.scrollHeight;
}

function addApprovalRequest(data) {
  const div = document.createElement('div');
  div.className = 'message approval-request';
  div.dataset.token = data.token;
  const text = document.createElement('div');
  text.textContent = data.prompt_text;
  div.appendChild(text);
  const approve = document.createElement('button');
  approve.className = 'approve-btn';
  approve.textContent = 'Approve';
  approve.onclick = () => submitDecision(data.token, true);
  const deny = document.createElement('button');
  deny.className = 'deny-btn';
  deny.textContent = 'Deny';
  deny.onclick = () => submitDecision(data.token, false);
  div.appendChild(approve);
  div.appendChild(deny);
  messagesDiv.appendChild(div);
  messagesDiv.scrollTop = messagesDiv.scrollHeight;
}

async function sendMessage() {
  const message = messageInput.value.trim();
  if (!message) return;
  addMessage(message, 'user-message');
  messageInput.value = '';
  try {
    const resp = await fetch('/api/v1/chat', {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({message: message, session_id: currentSessionId})
    });
    const data = await resp.json();
    currentSessionId = data.session_id;
    if (data.type === 'approval_request') {
      addApprovalRequest(data.approval_request);
    } else {
      addMessage(data.message, 'agent-message');
    }
  } catch (err) {
    addMessage('Error: ' + err.message, 'agent-message');
  }
}

async function submitDecision(token, approved) {
  document.querySelectorAll('.approval-request').forEach(el => {
    if (el.dataset.token === token) el.remove();
  });
  try {
    const resp = await fetch('/api/v1/approve', {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({token: token, approved: approved})
    });
    if (!resp.ok) {
      addMessage('Error: ' + await resp.text(), 'agent-message');
      return;
    }
    const data = await resp.json();
    addMessage(data.message, 'agent-message');
  } catch (err) {
    addMessage('Error: ' + err.message, 'agent-message');
  }
}

sendBtn.addEventListener('click', sendMessage);
messageInput.addEventListener('keypress', (e) => { if (e.key === 'Enter') sendMessage(); });
messageInput.focus();
</script>
</body>
</html>
`
